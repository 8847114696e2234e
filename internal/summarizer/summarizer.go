// Package summarizer turns extraction results into TL;DR summaries through
// whichever provider is configured.
package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tldr/internal/apperr"
	"tldr/internal/domain"
	"tldr/internal/provider"
)

const source = "summarizer"

type Options struct {
	Style    Style
	Language string
	// MaxInputChars caps the content sent to the provider. Zero disables it.
	MaxInputChars int
}

type Summarizer struct {
	provider provider.Provider
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

func New(p provider.Provider, opts Options, log *slog.Logger) *Summarizer {
	if opts.Style == "" {
		opts.Style = StyleStandard
	}
	if log == nil {
		log = slog.Default()
	}

	return &Summarizer{provider: p, opts: opts, log: log, now: time.Now}
}

// Summarize streams the summary through onChunk and returns it together with
// the extraction that was actually sent, which may have been truncated.
func (s *Summarizer) Summarize(
	ctx context.Context,
	extraction domain.ExtractionResult,
	onChunk func(string),
) (*domain.TldrResult, error) {
	if err := apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	if extraction.Content == "" && extraction.Image == nil {
		return nil, apperr.New(source, apperr.CodeInvalidURL, "nothing to summarize: the extracted content is empty")
	}

	if extraction.Truncate(s.opts.MaxInputChars) {
		s.log.InfoContext(ctx, "Content truncated",
			"source", extraction.Source,
			"maxInputChars", s.opts.MaxInputChars)
	}

	started := s.now()

	summary, err := s.provider.Summarize(ctx,
		SystemPrompt(s.opts.Style, s.opts.Language),
		UserPrompt(&extraction),
		onChunk,
		extraction.Image)
	if err != nil {
		return nil, normalize(err)
	}

	duration := s.now().Sub(started)

	s.log.DebugContext(ctx, "Summary ready",
		"provider", s.provider.Name(),
		"model", s.provider.Model(),
		"duration", duration,
		"words", extraction.WordCount)

	return &domain.TldrResult{
		Summary:    summary,
		Provider:   string(s.provider.Name()),
		Model:      s.provider.Model(),
		Extraction: extraction,
		Duration:   duration,
	}, nil
}

// RewriteForSpeech turns a Markdown summary into plain text for TTS.
func (s *Summarizer) RewriteForSpeech(ctx context.Context, markdown string) (string, error) {
	if err := apperr.CheckAborted(ctx); err != nil {
		return "", err
	}

	text, err := s.provider.Rewrite(ctx, markdown, speechSystemPrompt)
	if err != nil {
		return "", normalize(err)
	}

	return text, nil
}

// Chat answers follow-up questions about an earlier result. messages is the
// conversation so far, ending with the new question.
func (s *Summarizer) Chat(
	ctx context.Context,
	result *domain.TldrResult,
	messages []domain.Message,
	onChunk func(string),
) (string, error) {
	if err := apperr.CheckAborted(ctx); err != nil {
		return "", err
	}

	answer, err := s.provider.Chat(ctx, chatPrompt(result), messages, onChunk)
	if err != nil {
		return "", normalize(err)
	}

	return answer, nil
}

// normalize gives every failure a summarizer code. Known codes are kept,
// anything else becomes UNKNOWN and aborts are returned untouched.
func normalize(err error) error {
	if apperr.IsAborted(err) {
		return err
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Code.Known() {
		return apperr.Wrap(source, appErr.Code, appErr.Message, err)
	}

	return apperr.Wrap(source, apperr.CodeUnknown, err.Error(), err)
}
