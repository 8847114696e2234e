package provider

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"tldr/internal/apperr"
	"tldr/internal/config"
	"tldr/internal/domain"
)

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGemini(cfg config.Provider, o options) (*geminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, apperr.New(string(Gemini), apperr.CodeNoToken, "GEMINI_API_KEY is not set")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, apperr.Wrap(string(Gemini), apperr.CodeUnknown, "create Gemini client", err)
	}

	return &geminiBackend{client: client, model: cfg.Model}, nil
}

func (g *geminiBackend) stream(ctx context.Context, req *request, emit func(string)) error {
	contents, err := geminiContents(req)
	if err != nil {
		return err
	}

	generateConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.maxTokens), //nolint:gosec
	}
	if req.system != "" {
		generateConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.system}},
		}
	}

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, generateConfig) {
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}

		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Thought {
					continue
				}
				emit(part.Text)
			}
		}
	}

	return nil
}

func geminiContents(req *request) ([]*genai.Content, error) {
	last := lastUserMessage(req.messages)
	contents := make([]*genai.Content, 0, len(req.messages))

	for i, msg := range req.messages {
		if msg.Role == domain.RoleAssistant {
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
			continue
		}

		content := &genai.Content{Role: "user"}
		if i == last && req.image != nil {
			data, err := base64.StdEncoding.DecodeString(req.image.Base64)
			if err != nil {
				return nil, apperr.Wrap(string(Gemini), apperr.CodeUnknown, fmt.Sprintf("decode %s image", req.image.MediaType), err)
			}
			content.Parts = append(content.Parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: req.image.MediaType, Data: data},
			})
		}
		content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})

		contents = append(contents, content)
	}

	return contents, nil
}
