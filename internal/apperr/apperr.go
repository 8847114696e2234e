// Package apperr holds the closed set of failure kinds every subsystem
// reports, so callers can branch on a code instead of matching messages.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidURL    Code = "INVALID_URL"
	CodeNoToken       Code = "NO_TOKEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAuth          Code = "AUTH"
	CodeNetwork       Code = "NETWORK"
	CodeTimeout       Code = "TIMEOUT"
	CodeRateLimit     Code = "RATE_LIMIT"
	CodeRedirectLimit Code = "REDIRECT_LIMIT"
	CodeSSRF          Code = "SSRF"
	CodeScheme        Code = "SCHEME"
	CodeNoTranscript  Code = "NO_TRANSCRIPT"
	CodeUnknown       Code = "UNKNOWN"
)

// Category groups codes by what the user can do about them.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryTransient Category = "transient"
	CategoryInput     Category = "input"
	CategoryOther     Category = "other"
)

// ErrAborted marks work stopped by the caller. It is never given a Code.
var ErrAborted = errors.New("aborted")

var knownCodes = map[Code]struct{}{
	CodeInvalidURL:    {},
	CodeNoToken:       {},
	CodeNotFound:      {},
	CodeAuth:          {},
	CodeNetwork:       {},
	CodeTimeout:       {},
	CodeRateLimit:     {},
	CodeRedirectLimit: {},
	CodeSSRF:          {},
	CodeScheme:        {},
	CodeNoTranscript:  {},
	CodeUnknown:       {},
}

func (c Code) Known() bool {
	_, ok := knownCodes[c]
	return ok
}

func (c Code) Category() Category {
	switch c {
	case CodeNoToken, CodeAuth, CodeScheme:
		return CategoryConfig
	case CodeNetwork, CodeRateLimit, CodeTimeout:
		return CategoryTransient
	case CodeInvalidURL:
		return CategoryInput
	default:
		return CategoryOther
	}
}

// Error is the typed failure returned at subsystem boundaries. Source names
// the subsystem that produced it ("fetch", "slack", "openai", ...).
type Error struct {
	Source  string
	Code    Code
	Message string
	Err     error
}

func New(source string, code Code, message string) *Error {
	return &Error{Source: source, Code: code, Message: message}
}

func Wrap(source string, code Code, message string, err error) *Error {
	return &Error{Source: source, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Source == "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}

	return fmt.Sprintf("%s %s: %s", e.Source, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in the chain, or "" when there
// is none or the chain is an abort.
func CodeOf(err error) Code {
	if err == nil || IsAborted(err) {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return ""
}

func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// Aborted wraps the cause so that both ErrAborted and the cause match.
func Aborted(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}

	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

// CheckAborted returns an abort error when ctx is already done because the
// caller cancelled it.
func CheckAborted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Aborted(err)
	}

	return nil
}
