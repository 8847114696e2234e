package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func noSleep(context.Context, time.Duration) error {
	return nil
}

// writeSSE writes each event as "event:"/"data:" lines and flushes it.
func writeSSE(t *testing.T, w http.ResponseWriter, events ...[2]string) {
	t.Helper()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	require.True(t, ok)

	for _, event := range events {
		if event[0] != "" {
			_, _ = fmt.Fprintf(w, "event: %s\n", event[0])
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", event[1])
		flusher.Flush()
	}
}

func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// decodeBody reads a JSON request body into a generic map.
func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

	return body
}

func collect(chunks *[]string) func(string) {
	return func(chunk string) {
		*chunks = append(*chunks, chunk)
	}
}

type hitCounter struct {
	n atomic.Int32
}

func (h *hitCounter) inc() {
	h.n.Add(1)
}

func (h *hitCounter) count() int {
	return int(h.n.Load())
}

func joined(chunks []string) string {
	return strings.Join(chunks, "")
}
