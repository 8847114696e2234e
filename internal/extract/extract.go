// Package extract turns classified input into normalized text. Each source
// has its own extractor; Pipeline dispatches between them.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

const (
	sourceWeb      = "web"
	sourceFeed     = "feed"
	sourcePDF      = "pdf"
	sourceImage    = "image"
	sourceYouTube  = "youtube"
	sourceSlack    = "slack"
	sourceNotion   = "notion"
	sourceGitHub   = "github"
	sourcePipeline = "pipeline"

	directInputSource = "direct input"
)

// Fetcher is satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*domain.FetchResult, error)
}

var (
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
)

// statusError maps non-2xx responses to error codes.
func statusError(source string, res *domain.FetchResult) error {
	if res.Status >= http.StatusOK && res.Status < http.StatusMultipleChoices {
		return nil
	}

	msg := fmt.Sprintf("HTTP %d fetching %s", res.Status, res.URL)

	switch res.Status {
	case http.StatusNotFound, http.StatusGone:
		return apperr.New(source, apperr.CodeNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.New(source, apperr.CodeAuth, msg)
	default:
		return apperr.New(source, apperr.CodeNetwork, msg)
	}
}

// normalizeText trims trailing whitespace on every line and collapses runs of
// blank lines.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}
