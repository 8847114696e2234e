package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

// PageDecoder returns the text layer of every page in a PDF document.
type PageDecoder func(data []byte) ([]string, error)

type PDF struct {
	fetcher Fetcher
	decode  PageDecoder
}

// NewPDF uses the built-in text layer decoder when decode is nil.
func NewPDF(fetcher Fetcher, decode PageDecoder) *PDF {
	if decode == nil {
		decode = DecodePDFPages
	}

	return &PDF{fetcher: fetcher, decode: decode}
}

func (p *PDF) ExtractURL(ctx context.Context, rawURL string) (*domain.ExtractionResult, error) {
	res, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err = statusError(sourcePDF, res); err != nil {
		return nil, err
	}

	return p.FromBytes([]byte(res.Body), res.URL)
}

func (p *PDF) ExtractFile(ctx context.Context, path string) (*domain.ExtractionResult, error) {
	if err := apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	data, abs, err := readLocalFile(sourcePDF, path)
	if err != nil {
		return nil, err
	}

	return p.FromBytes(data, abs)
}

// FromBytes extracts an already loaded document. A PDF without a text layer
// yields empty content, not an error.
func (p *PDF) FromBytes(data []byte, source string) (*domain.ExtractionResult, error) {
	pages, err := p.decode(data)
	if err != nil {
		return nil, apperr.Wrap(sourcePDF, apperr.CodeUnknown, fmt.Sprintf("parse PDF %s", source), err)
	}

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		if text := normalizeText(page); text != "" {
			texts = append(texts, text)
		}
	}

	result := domain.NewExtractionResult(strings.Join(texts, "\n\n"), source)
	result.Title = pdfTitle(len(pages))

	return &result, nil
}

func pdfTitle(pages int) string {
	if pages == 1 {
		return "PDF (1 page)"
	}

	return fmt.Sprintf("PDF (%d pages)", pages)
}

// DecodePDFPages reads the text layer with ledongthuc/pdf. The library panics
// on some malformed inputs, so panics are turned into errors.
func DecodePDFPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, textErr := page.GetPlainText(nil)
		if textErr != nil {
			return nil, fmt.Errorf("read page %d: %w", i, textErr)
		}
		pages = append(pages, text)
	}

	return pages, nil
}
