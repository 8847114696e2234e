package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"tldr/internal/apperr"
)

// statusOverloaded is Anthropic's "overloaded" status. It is treated like a
// rate limit.
const statusOverloaded = 529

// classifyError maps SDK and transport failures onto apperr codes. Errors
// that already carry a code, and aborts, pass through.
func classifyError(source string, err error) error {
	var appErr *apperr.Error
	switch {
	case err == nil:
		return nil
	case apperr.IsAborted(err), errors.As(err, &appErr):
		return err
	}

	if status, ok := apiStatus(err); ok {
		return statusError(source, status, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(source, apperr.CodeTimeout, "request timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return apperr.Wrap(source, apperr.CodeTimeout, "request timed out", err)
	case errors.As(err, &netErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.Wrap(source, apperr.CodeNetwork, "connection failed", err)
	}

	return apperr.Wrap(source, apperr.CodeUnknown, err.Error(), err)
}

func apiStatus(err error) (int, bool) {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode, true
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return geminiErr.Code, true
	}

	var geminiPtrErr *genai.APIError
	if errors.As(err, &geminiPtrErr) {
		return geminiPtrErr.Code, true
	}

	return 0, false
}

func statusError(source string, status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Wrap(source, apperr.CodeAuth, "API key was rejected", err)
	case status == http.StatusTooManyRequests || status == statusOverloaded:
		return apperr.Wrap(source, apperr.CodeRateLimit, "rate limited", err)
	case status == http.StatusNotFound:
		return apperr.Wrap(source, apperr.CodeNotFound, "model or endpoint not found", err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return apperr.Wrap(source, apperr.CodeTimeout, "request timed out", err)
	default:
		return apperr.Wrap(source, apperr.CodeUnknown, fmt.Sprintf("unexpected status %d", status), err)
	}
}
