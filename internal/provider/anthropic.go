package provider

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"tldr/internal/apperr"
	"tldr/internal/config"
	"tldr/internal/domain"
)

type anthropicBackend struct {
	client anthropic.Client
	model  string
}

func newAnthropic(cfg config.Provider, o options) (*anthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, apperr.New(string(Anthropic), apperr.CodeNoToken, "ANTHROPIC_API_KEY is not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if o.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(o.httpClient))
	}

	return &anthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (a *anthropicBackend) stream(ctx context.Context, req *request, emit func(string)) error {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(req.maxTokens),
		Messages:  anthropicMessages(req),
	}
	if req.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.system}}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close() //nolint:errcheck

	for stream.Next() {
		event, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok {
			emit(delta.Text)
		}
	}

	return stream.Err()
}

func anthropicMessages(req *request) []anthropic.MessageParam {
	last := lastUserMessage(req.messages)
	messages := make([]anthropic.MessageParam, 0, len(req.messages))

	for i, msg := range req.messages {
		if msg.Role == domain.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		if i == last && req.image != nil {
			blocks = append(blocks, anthropic.NewImageBlockBase64(req.image.MediaType, req.image.Base64))
		}
		blocks = append(blocks, anthropic.NewTextBlock(msg.Content))

		messages = append(messages, anthropic.NewUserMessage(blocks...))
	}

	return messages
}

// lastUserMessage returns the index of the message an image attaches to, or
// -1 when there is no user message.
func lastUserMessage(messages []domain.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleAssistant {
			return i
		}
	}

	return -1
}
