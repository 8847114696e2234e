package provider

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"syscall"

	"tldr/internal/apperr"
	"tldr/internal/config"
	"tldr/internal/domain"
)

const (
	ollamaChatPath    = "/api/chat"
	maxOllamaLineSize = 1 << 20
)

type ollamaBackend struct {
	client  *http.Client
	baseURL string
	model   string
	log     *slog.Logger
}

func newOllama(cfg config.Provider, o options) *ollamaBackend {
	client := o.httpClient
	if client == nil {
		client = &http.Client{}
	}

	return &ollamaBackend{
		client:  client,
		baseURL: strings.TrimRight(cmp.Or(cfg.BaseURL, config.DefaultOllamaBaseURL), "/"),
		model:   cfg.Model,
		log:     o.log,
	}
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (b *ollamaBackend) stream(ctx context.Context, req *request, emit func(string)) error {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    b.model,
		Messages: ollamaMessages(req),
		Stream:   true,
		Options:  map[string]any{"num_predict": req.maxTokens},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+ollamaChatPath, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(string(Ollama), apperr.CodeInvalidURL, "invalid OLLAMA_BASE_URL", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq) //nolint:gosec
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return apperr.Wrap(string(Ollama), apperr.CodeNetwork,
				fmt.Sprintf("Ollama is not running at %s, start it with `ollama serve`", b.baseURL), err)
		}
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			b.log.ErrorContext(ctx, "Failed to close Ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return b.statusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOllamaLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			b.log.DebugContext(ctx, "Skipping malformed Ollama line", "error", err)
			continue
		}
		if chunk.Error != "" {
			return apperr.New(string(Ollama), apperr.CodeUnknown, chunk.Error)
		}

		emit(chunk.Message.Content)

		if chunk.Done {
			return nil
		}
	}

	return scanner.Err()
}

func (b *ollamaBackend) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}

	if resp.StatusCode == http.StatusNotFound {
		return apperr.New(string(Ollama), apperr.CodeNotFound,
			fmt.Sprintf("model %q is not available, pull it with `ollama pull %s`", b.model, b.model))
	}

	return statusError(string(Ollama), resp.StatusCode, errors.New(cmp.Or(message, resp.Status)))
}

func ollamaMessages(req *request) []ollamaMessage {
	last := lastUserMessage(req.messages)
	messages := make([]ollamaMessage, 0, len(req.messages)+1)

	if req.system != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.system})
	}

	for i, msg := range req.messages {
		m := ollamaMessage{Role: string(msg.Role), Content: msg.Content}
		if msg.Role != domain.RoleAssistant {
			m.Role = string(domain.RoleUser)
			if i == last && req.image != nil {
				m.Images = []string{req.image.Base64}
			}
		}
		messages = append(messages, m)
	}

	return messages
}
