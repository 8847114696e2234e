// Package provider talks to text generation backends. Every backend streams
// text through onChunk and returns the same text once the stream ends.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tldr/internal/apperr"
	"tldr/internal/config"
	"tldr/internal/domain"
)

type Name string

const (
	Anthropic  Name = "anthropic"
	OpenAI     Name = "openai"
	XAI        Name = "xai"
	Gemini     Name = "gemini"
	Ollama     Name = "ollama"
	ClaudeCode Name = "claude-code"
	Codex      Name = "codex"
)

func Names() []Name {
	return []Name{Anthropic, OpenAI, XAI, Gemini, Ollama, ClaudeCode, Codex}
}

const (
	hostedAttempts = 3
	retryBaseDelay = time.Second
	defaultMaxTok  = 2048
)

type Provider interface {
	Name() Name
	Model() string
	Summarize(
		ctx context.Context,
		systemPrompt, userPrompt string,
		onChunk func(string),
		image *domain.ImageData,
	) (string, error)
	Rewrite(ctx context.Context, markdown, systemPrompt string) (string, error)
	Chat(ctx context.Context, systemPrompt string, messages []domain.Message, onChunk func(string)) (string, error)
}

// request is the backend-neutral form of one generation call. Image, when
// set, belongs to the last user message.
type request struct {
	system    string
	messages  []domain.Message
	image     *domain.ImageData
	maxTokens int
}

// streamer is implemented once per backend. stream must call emit for every
// text fragment in the order the transport delivers them.
type streamer interface {
	stream(ctx context.Context, req *request, emit func(string)) error
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
	binary     string
}

// WithHTTPClient replaces the HTTP client of the hosted and Ollama backends.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithSleep replaces the wait between rate limited attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithBinary overrides the executable of the CLI backends.
func WithBinary(path string) Option {
	return func(o *options) {
		o.binary = path
	}
}

// Client runs one backend with the retry and cancellation rules shared by
// all of them.
type Client struct {
	name      Name
	model     string
	maxTokens int
	attempts  int
	backend   streamer
	sleep     func(ctx context.Context, d time.Duration) error
	log       *slog.Logger
}

// New builds the backend named by cfg.Name. Hosted backends without an API
// key fail with NO_TOKEN.
func New(cfg config.Provider, opts ...Option) (*Client, error) {
	o := options{sleep: sleepContext, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	name := Name(strings.ToLower(strings.TrimSpace(cfg.Name)))

	var (
		backend  streamer
		attempts = hostedAttempts
		err      error
	)

	switch name {
	case Anthropic:
		backend, err = newAnthropic(cfg, o)
	case OpenAI, XAI:
		backend, err = newOpenAI(name, cfg, o)
	case Gemini:
		backend, err = newGemini(cfg, o)
	case Ollama:
		backend, attempts = newOllama(cfg, o), 1
	case ClaudeCode, Codex:
		backend, attempts = newCLI(name, cfg, o), 1
	default:
		return nil, apperr.New(string(name), apperr.CodeUnknown, fmt.Sprintf("unknown provider %q", cfg.Name))
	}
	if err != nil {
		return nil, err
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTok
	}

	return &Client{
		name:      name,
		model:     cfg.Model,
		maxTokens: maxTokens,
		attempts:  attempts,
		backend:   backend,
		sleep:     o.sleep,
		log:       o.log.With("provider", string(name)),
	}, nil
}

func (c *Client) Name() Name {
	return c.name
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Summarize(
	ctx context.Context,
	systemPrompt, userPrompt string,
	onChunk func(string),
	image *domain.ImageData,
) (string, error) {
	return c.run(ctx, &request{
		system:    systemPrompt,
		messages:  []domain.Message{{Role: domain.RoleUser, Content: userPrompt}},
		image:     image,
		maxTokens: c.maxTokens,
	}, onChunk)
}

// Rewrite runs a one-shot transformation of markdown without streaming.
func (c *Client) Rewrite(ctx context.Context, markdown, systemPrompt string) (string, error) {
	return c.run(ctx, &request{
		system:    systemPrompt,
		messages:  []domain.Message{{Role: domain.RoleUser, Content: markdown}},
		maxTokens: c.maxTokens,
	}, nil)
}

func (c *Client) Chat(
	ctx context.Context,
	systemPrompt string,
	messages []domain.Message,
	onChunk func(string),
) (string, error) {
	if len(messages) == 0 {
		return "", apperr.New(string(c.name), apperr.CodeInvalidURL, "chat needs at least one message")
	}

	return c.run(ctx, &request{
		system:    systemPrompt,
		messages:  messages,
		maxTokens: c.maxTokens,
	}, onChunk)
}
