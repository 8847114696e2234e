package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tldr/internal/apperr"
	"tldr/internal/config"
	"tldr/internal/domain"
)

func anthropicEvents(deltas ...string) [][2]string {
	events := [][2]string{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant",` +
			`"content":[],"model":"claude-test","stop_reason":null,"stop_sequence":null,` +
			`"usage":{"input_tokens":10,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
	}

	for _, delta := range deltas {
		events = append(events, [2]string{"content_block_delta",
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":` + quote(delta) + `}}`})
	}

	return append(events,
		[2]string{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		[2]string{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":5}}`},
		[2]string{"message_stop", `{"type":"message_stop"}`},
	)
}

func newAnthropicClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(config.Provider{
		Name:      "anthropic",
		APIKey:    "sk-ant-test",
		BaseURL:   srv.URL,
		Model:     "claude-test",
		MaxTokens: 256,
	}, WithSleep(noSleep), WithLogger(discardLogger()))
	require.NoError(t, err)

	return client
}

func TestAnthropicStreamsTextDeltas(t *testing.T) {
	var body map[string]any
	client := newAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		body = decodeBody(t, r)

		writeSSE(t, w, anthropicEvents("Short ", "and ", "sweet.")...)
	})

	var chunks []string
	text, err := client.Summarize(context.Background(), "summarize", "article", collect(&chunks), nil)
	require.NoError(t, err)

	assert.Equal(t, "Short and sweet.", text)
	assert.Equal(t, []string{"Short ", "and ", "sweet."}, chunks)

	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	system := body["system"].([]any)
	assert.Equal(t, "summarize", system[0].(map[string]any)["text"])
}

func TestAnthropicSendsImageBlock(t *testing.T) {
	var body map[string]any
	client := newAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		writeSSE(t, w, anthropicEvents("a chart")...)
	})

	image := &domain.ImageData{Base64: "aGVsbG8=", MediaType: domain.MediaTypeJPEG}
	_, err := client.Summarize(context.Background(), "", "what is this", nil, image)
	require.NoError(t, err)

	messages := body["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)

	imageBlock := content[0].(map[string]any)
	assert.Equal(t, "image", imageBlock["type"])
	source := imageBlock["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/jpeg", source["media_type"])
	assert.Equal(t, "aGVsbG8=", source["data"])
	assert.Equal(t, "text", content[1].(map[string]any)["type"])
}

func TestAnthropicChatKeepsRoles(t *testing.T) {
	var body map[string]any
	client := newAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		writeSSE(t, w, anthropicEvents("Because.")...)
	})

	text, err := client.Chat(context.Background(), "", []domain.Message{
		{Role: domain.RoleUser, Content: "summary please"},
		{Role: domain.RoleAssistant, Content: "here it is"},
		{Role: domain.RoleUser, Content: "why?"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Because.", text)

	messages := body["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
	assert.Equal(t, "user", messages[2].(map[string]any)["role"])
}

func TestAnthropicErrorsByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   apperr.Code
		hits   int
	}{
		{http.StatusUnauthorized, apperr.CodeAuth, 1},
		{http.StatusForbidden, apperr.CodeAuth, 1},
		{http.StatusNotFound, apperr.CodeNotFound, 1},
		{http.StatusTooManyRequests, apperr.CodeRateLimit, 3},
		{statusOverloaded, apperr.CodeRateLimit, 3},
		{http.StatusInternalServerError, apperr.CodeUnknown, 1},
	}

	for _, test := range tests {
		t.Run(http.StatusText(test.status), func(t *testing.T) {
			hits := &hitCounter{}
			client := newAnthropicClient(t, func(w http.ResponseWriter, _ *http.Request) {
				hits.inc()
				writeJSONError(w, test.status, `{"type":"error","error":{"type":"api_error","message":"nope"}}`)
			})

			_, err := client.Summarize(context.Background(), "", "x", nil, nil)

			assert.Equal(t, test.want, apperr.CodeOf(err))
			assert.Equal(t, test.hits, hits.count())
		})
	}
}
