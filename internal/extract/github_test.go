package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

func TestRawGitHubURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://github.com/golang/go/blob/master/README.md", "https://raw.githubusercontent.com/golang/go/master/README.md", true},
		{"https://www.github.com/o/r/blob/v1.2.3/docs/a%20b.txt", "https://raw.githubusercontent.com/o/r/v1.2.3/docs/a%20b.txt", true},
		{"https://github.com/o/r", "", false},
		{"https://github.com/o/r/tree/main/docs", "", false},
		{"https://gitlab.com/o/r/blob/main/x.go", "", false},
	}

	for _, test := range tests {
		got, ok := RawGitHubURL(test.in)
		assert.Equal(t, test.ok, ok, test.in)
		assert.Equal(t, test.want, got, test.in)
	}
}

func TestGitHubExtractText(t *testing.T) {
	const blob = "https://github.com/o/r/blob/main/cmd/main.go"
	fetcher := newFakeFetcher().serve("https://raw.githubusercontent.com/o/r/main/cmd/main.go", "text/plain",
		"package main\n\nfunc main() {}\n")

	result, ok, err := NewGitHub(fetcher, NewPDF(fetcher, nil), NewImage(fetcher, t.TempDir())).
		Extract(context.Background(), blob)
	require.True(t, ok)
	require.NoError(t, err)

	assert.Equal(t, "main.go", result.Title)
	assert.Equal(t, blob, result.Source)
	assert.Equal(t, 5, result.WordCount)
}

func TestGitHubExtractDispatchesByExtension(t *testing.T) {
	fetcher := newFakeFetcher().
		serve("https://raw.githubusercontent.com/o/r/main/paper.pdf", "application/octet-stream", "%PDF").
		serve("https://raw.githubusercontent.com/o/r/main/logo.gif", "application/octet-stream", "GIF89a")
	github := NewGitHub(fetcher, NewPDF(fetcher, pagesDecoder("a", "b")), NewImage(fetcher, t.TempDir()))

	result, ok, err := github.Extract(context.Background(), "https://github.com/o/r/blob/main/paper.pdf")
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "PDF (2 pages)", result.Title)

	result, ok, err = github.Extract(context.Background(), "https://github.com/o/r/blob/main/logo.gif")
	require.True(t, ok)
	require.NoError(t, err)
	require.NotNil(t, result.Image)
	assert.Equal(t, domain.MediaTypeGIF, result.Image.MediaType)
}

func TestGitHubExtractMissingFile(t *testing.T) {
	fetcher := newFakeFetcher()

	_, ok, err := NewGitHub(fetcher, NewPDF(fetcher, nil), NewImage(fetcher, "")).
		Extract(context.Background(), "https://github.com/o/r/blob/main/gone.md")
	require.True(t, ok)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestArxivPDFURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://arxiv.org/abs/2301.00001", "https://arxiv.org/pdf/2301.00001", true},
		{"https://arxiv.org/abs/2301.00001v2", "https://arxiv.org/pdf/2301.00001v2", true},
		{"https://arxiv.org/html/2301.00001v1/", "https://arxiv.org/pdf/2301.00001v1", true},
		{"https://export.arxiv.org/abs/hep-th/9901001", "https://arxiv.org/pdf/hep-th/9901001", true},
		{"https://arxiv.org/list/cs.AI/recent", "", false},
		{"https://arxiv.org/", "", false},
	}

	for _, test := range tests {
		got, ok := ArxivPDFURL(test.in)
		assert.Equal(t, test.ok, ok, test.in)
		assert.Equal(t, test.want, got, test.in)
	}
}

func TestArxivExtract(t *testing.T) {
	fetcher := newFakeFetcher().serve("https://arxiv.org/pdf/2301.00001", "application/pdf", "%PDF")
	arxiv := NewArxiv(NewPDF(fetcher, pagesDecoder("We propose a method.")))

	result, ok, err := arxiv.Extract(context.Background(), "https://arxiv.org/abs/2301.00001")
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "PDF (1 page)", result.Title)
	assert.Equal(t, "https://arxiv.org/pdf/2301.00001", result.Source)

	_, ok, err = arxiv.Extract(context.Background(), "https://arxiv.org/list/cs.AI/recent")
	assert.False(t, ok)
	assert.NoError(t, err)
}
