package extract

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"tldr/internal/domain"
)

const rawGitHubHost = "raw.githubusercontent.com"

var githubBlobPathRe = regexp.MustCompile(`^/([^/]+)/([^/]+)/blob/([^/]+)/(.+)$`)

// GitHub reads files shown on github.com blob pages from their raw URL.
type GitHub struct {
	fetcher Fetcher
	pdf     *PDF
	image   *Image
}

func NewGitHub(fetcher Fetcher, pdf *PDF, image *Image) *GitHub {
	return &GitHub{fetcher: fetcher, pdf: pdf, image: image}
}

// RawGitHubURL maps github.com/<owner>/<repo>/blob/<ref>/<path> to its
// raw.githubusercontent.com equivalent.
func RawGitHubURL(blobURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(blobURL))
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" {
		return "", false
	}

	m := githubBlobPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}

	raw := url.URL{
		Scheme: "https",
		Host:   rawGitHubHost,
		Path:   fmt.Sprintf("/%s/%s/%s/%s", m[1], m[2], m[3], m[4]),
	}

	return raw.String(), true
}

func (g *GitHub) Extract(ctx context.Context, blobURL string) (*domain.ExtractionResult, bool, error) {
	rawURL, ok := RawGitHubURL(blobURL)
	if !ok {
		return nil, false, nil
	}

	name := path.Base(rawURL)

	switch ext := strings.ToLower(path.Ext(name)); {
	case ext == ".pdf":
		result, err := g.pdf.ExtractURL(ctx, rawURL)
		return result, true, err
	case imageMediaTypes[ext] != "":
		result, err := g.image.ExtractURL(ctx, rawURL)
		return result, true, err
	}

	res, err := g.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, true, err
	}
	if err = statusError(sourceGitHub, res); err != nil {
		return nil, true, err
	}

	result := domain.NewExtractionResult(strings.ToValidUTF8(res.Body, "�"), blobURL)
	result.Title = name

	return &result, true, nil
}
