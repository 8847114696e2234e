package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"tldr/internal/domain"
)

var arxivPaperPathRe = regexp.MustCompile(`^/(abs|html|pdf)/(.+?)(\.pdf)?/?$`)

// ArxivPDFURL points abstract and HTML pages at the paper's PDF.
func ArxivPDFURL(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}

	m := arxivPaperPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}

	pdfURL := url.URL{Scheme: "https", Host: "arxiv.org", Path: "/pdf/" + m[2]}

	return pdfURL.String(), true
}

type Arxiv struct {
	pdf *PDF
}

func NewArxiv(pdf *PDF) *Arxiv {
	return &Arxiv{pdf: pdf}
}

// Extract reports ok=false for arXiv pages that are not papers, such as
// listings, so the caller can fall back to the web extractor.
func (a *Arxiv) Extract(ctx context.Context, rawURL string) (*domain.ExtractionResult, bool, error) {
	pdfURL, ok := ArxivPDFURL(rawURL)
	if !ok {
		return nil, false, nil
	}

	result, err := a.pdf.ExtractURL(ctx, pdfURL)

	return result, true, err
}
