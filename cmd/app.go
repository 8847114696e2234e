package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"tldr/internal/config"
	"tldr/internal/domain"
	"tldr/internal/extract"
	"tldr/internal/fetch"
	"tldr/internal/history"
	"tldr/internal/provider"
	"tldr/internal/summarizer"
)

// cliUserID owns the history entries written from the command line.
const cliUserID = 0

type extractor interface {
	Extract(ctx context.Context, raw string) (*domain.ExtractionResult, error)
}

type historyStore interface {
	Add(ctx context.Context, userID int64, result *domain.TldrResult) (int64, error)
	List(ctx context.Context, userID int64, limit int) ([]history.Entry, error)
	Get(ctx context.Context, userID, id int64) (*history.Entry, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// app holds the wiring shared by every command. Tests replace the
// constructors with fakes.
type app struct {
	cfg         config.Config
	log         *slog.Logger
	extractor   extractor
	newProvider func(cfg config.Provider) (provider.Provider, error)
	openHistory func(ctx context.Context) (historyStore, error)
}

func newApp(cfg config.Config, log *slog.Logger) *app {
	fetcher := fetch.New(fetch.Options{Timeout: cfg.FetchTimeout}, log)

	opts := extract.PipelineOptions{
		SlackMaxPages:  cfg.SlackMaxPages,
		NotionMaxDepth: cfg.NotionMaxDepth,
	}
	if cfg.SlackToken != "" {
		opts.Slack = extract.NewSlackClient(cfg.SlackToken)
	}
	if cfg.NotionToken != "" {
		opts.Notion = extract.NewNotionClient(cfg.NotionToken)
	}

	return &app{
		cfg:       cfg,
		log:       log,
		extractor: extract.NewPipeline(fetcher, opts, log),
		newProvider: func(pcfg config.Provider) (provider.Provider, error) {
			return provider.New(pcfg, provider.WithLogger(log))
		},
		openHistory: func(ctx context.Context) (historyStore, error) {
			return history.Open(ctx, cfg.HistoryPath, log)
		},
	}
}

func newLogger(level string, w io.Writer, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (a *app) summarizer() (*summarizer.Summarizer, error) {
	pcfg, err := a.cfg.ResolveProvider()
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}

	p, err := a.newProvider(pcfg)
	if err != nil {
		return nil, err
	}

	style, err := summarizer.ParseStyle(a.cfg.Style)
	if err != nil {
		return nil, err
	}

	return summarizer.New(p, summarizer.Options{
		Style:         style,
		Language:      a.cfg.Language,
		MaxInputChars: a.cfg.MaxInputChars,
	}, a.log), nil
}

// withHistory opens the store for the duration of fn.
func (a *app) withHistory(ctx context.Context, fn func(store historyStore) error) error {
	store, err := a.openHistory(ctx)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			a.log.ErrorContext(ctx, "Failed to close history",
				"error", err,
				"historyPath", a.cfg.HistoryPath)
		}
	}()

	return fn(store)
}

// entry resolves "last" or a numeric id to a stored summary.
func (a *app) entry(ctx context.Context, store historyStore, ref string) (*history.Entry, error) {
	if strings.EqualFold(ref, "last") {
		entries, err := store.List(ctx, cliUserID, 1)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("history is empty")
		}
		ref = fmt.Sprint(entries[0].ID)
	}

	var id int64
	if _, err := fmt.Sscan(ref, &id); err != nil {
		return nil, fmt.Errorf("parse history id %q: %w", ref, err)
	}

	return store.Get(ctx, cliUserID, id)
}

// removeTempImage deletes an image that was downloaded for the run. Local
// image files belong to the user and are left alone.
func (a *app) removeTempImage(ctx context.Context, extraction *domain.ExtractionResult) {
	img := extraction.Image
	if img == nil || img.FilePath == "" {
		return
	}
	if !strings.HasPrefix(extraction.Source, "http://") && !strings.HasPrefix(extraction.Source, "https://") {
		return
	}

	if err := os.Remove(img.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.WarnContext(ctx, "Failed to remove temporary image",
			"error", err,
			"path", img.FilePath)
	}
}
