package provider

import (
	"cmp"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"tldr/internal/apperr"
	"tldr/internal/config"
	"tldr/internal/domain"
)

const xaiBaseURL = "https://api.x.ai/v1"

// openaiBackend serves OpenAI and every OpenAI compatible API, xAI included.
type openaiBackend struct {
	client openai.Client
	model  string
}

func newOpenAI(name Name, cfg config.Provider, o options) (*openaiBackend, error) {
	baseURL := cfg.BaseURL
	keyVar := "OPENAI_API_KEY"
	if name == XAI {
		baseURL = cmp.Or(baseURL, xaiBaseURL)
		keyVar = "XAI_API_KEY"
	}

	if cfg.APIKey == "" {
		return nil, apperr.New(string(name), apperr.CodeNoToken, keyVar+" is not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if o.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(o.httpClient))
	}

	return &openaiBackend{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (b *openaiBackend) stream(ctx context.Context, req *request, emit func(string)) error {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(b.model),
		Messages:            openaiMessages(req),
		MaxCompletionTokens: openai.Int(int64(req.maxTokens)),
	}

	stream := b.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close() //nolint:errcheck

	for stream.Next() {
		for _, choice := range stream.Current().Choices {
			emit(choice.Delta.Content)
		}
	}

	return stream.Err()
}

func openaiMessages(req *request) []openai.ChatCompletionMessageParamUnion {
	last := lastUserMessage(req.messages)
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.messages)+1)

	if req.system != "" {
		messages = append(messages, openai.SystemMessage(req.system))
	}

	for i, msg := range req.messages {
		switch {
		case msg.Role == domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case i == last && req.image != nil:
			messages = append(messages, openaiImageMessage(msg.Content, req.image))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return messages
}

func openaiImageMessage(text string, image *domain.ImageData) openai.ChatCompletionMessageParamUnion {
	dataURL := fmt.Sprintf("data:%s;base64,%s", image.MediaType, image.Base64)

	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
					{OfText: &openai.ChatCompletionContentPartTextParam{Text: text}},
					{OfImageURL: &openai.ChatCompletionContentPartImageParam{
						ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL},
					}},
				},
			},
		},
	}
}
