package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"tldr/internal/apperr"
	"tldr/internal/classify"
	"tldr/internal/domain"
)

type PipelineOptions struct {
	// Slack and Notion are nil when no token is configured.
	Slack          SlackAPI
	SlackMaxPages  int
	Notion         NotionAPI
	NotionMaxDepth int
	// Transcripts defaults to reading the YouTube watch page.
	Transcripts TranscriptFetcher
	PDFDecoder  PageDecoder
	TempDir     string
}

// Pipeline classifies raw input and hands it to exactly one extractor.
type Pipeline struct {
	web     *Web
	pdf     *PDF
	image   *Image
	youtube *YouTube
	slack   *Slack
	notion  *Notion
	github  *GitHub
	arxiv   *Arxiv
	log     *slog.Logger
}

func NewPipeline(fetcher Fetcher, opts PipelineOptions, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}

	transcripts := opts.Transcripts
	if transcripts == nil {
		transcripts = NewWatchPageTranscripts(fetcher)
	}

	pdf := NewPDF(fetcher, opts.PDFDecoder)
	image := NewImage(fetcher, opts.TempDir)

	return &Pipeline{
		web:     NewWeb(fetcher, pdf, NewFeed(), log),
		pdf:     pdf,
		image:   image,
		youtube: NewYouTube(transcripts),
		slack:   NewSlack(opts.Slack, opts.SlackMaxPages, log),
		notion:  NewNotion(opts.Notion, opts.NotionMaxDepth, log),
		github:  NewGitHub(fetcher, pdf, image),
		arxiv:   NewArxiv(pdf),
		log:     log,
	}
}

func (p *Pipeline) Extract(ctx context.Context, raw string) (*domain.ExtractionResult, error) {
	if err := apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	input := classify.Classify(raw)

	p.log.DebugContext(ctx, "Classified input",
		"type", input.Type,
		"value", input.Value)

	switch input.Type {
	case domain.InputURLPDF:
		return p.pdf.ExtractURL(ctx, input.Value)
	case domain.InputURLImage:
		return p.image.ExtractURL(ctx, input.Value)
	case domain.InputURLYouTube:
		return p.youtube.Extract(ctx, input.Value)
	case domain.InputURLSlack:
		return p.slack.Extract(ctx, input.Value)
	case domain.InputURLNotion:
		return p.notion.Extract(ctx, input.Value)
	case domain.InputURLArxiv:
		if result, ok, err := p.arxiv.Extract(ctx, input.Value); ok {
			return result, err
		}
		return p.web.Extract(ctx, input.Value)
	case domain.InputURLGitHub:
		if result, ok, err := p.github.Extract(ctx, input.Value); ok {
			return result, err
		}
		return p.web.Extract(ctx, input.Value)
	case domain.InputURL:
		return p.web.Extract(ctx, input.Value)
	case domain.InputFilePDF:
		return p.pdf.ExtractFile(ctx, input.Value)
	case domain.InputFileImage:
		return p.image.ExtractFile(ctx, input.Value)
	case domain.InputFile:
		return p.textFile(input.Value)
	case domain.InputText:
		return p.text(input.Value)
	default:
		return nil, apperr.New(sourcePipeline, apperr.CodeUnknown,
			fmt.Sprintf("unsupported input type %q", input.Type))
	}
}

func (p *Pipeline) textFile(path string) (*domain.ExtractionResult, error) {
	data, abs, err := readLocalFile(sourcePipeline, path)
	if err != nil {
		return nil, err
	}

	result := domain.NewExtractionResult(strings.ToValidUTF8(string(data), "�"), abs)
	result.Title = filepath.Base(abs)

	return &result, nil
}

// text wraps raw input as is. Empty input gives an empty result; the
// summarizer refuses to summarize nothing.
func (p *Pipeline) text(value string) (*domain.ExtractionResult, error) {
	result := domain.NewExtractionResult(value, directInputSource)

	return &result, nil
}
