package extract

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

func TestImageMediaType(t *testing.T) {
	tests := map[string]string{
		"a.jpg":      domain.MediaTypeJPEG,
		"a.JPEG":     domain.MediaTypeJPEG,
		"a.png":      domain.MediaTypePNG,
		"a.gif":      domain.MediaTypeGIF,
		"a.webp":     domain.MediaTypeWebP,
		"a.bmp":      domain.MediaTypePNG,
		"no-ext":     domain.MediaTypePNG,
		"/x/y/z.Gif": domain.MediaTypeGIF,
	}

	for name, want := range tests {
		assert.Equal(t, want, ImageMediaType(name), name)
	}
}

func TestImageExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o600))

	result, err := NewImage(nil, "").ExtractFile(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, result.Content)
	assert.Zero(t, result.WordCount)
	assert.Equal(t, "cat.jpg", result.Title)
	require.NotNil(t, result.Image)
	assert.Equal(t, domain.MediaTypeJPEG, result.Image.MediaType)
	assert.Equal(t, path, result.Image.FilePath)
	assert.True(t, filepath.IsAbs(result.Image.FilePath))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}), result.Image.Base64)
}

func TestImageExtractFileMissing(t *testing.T) {
	_, err := NewImage(nil, "").ExtractFile(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestImageExtractURLDownloadsToTempFile(t *testing.T) {
	const body = "\x89PNG fake image"
	fetcher := newFakeFetcher().serve("https://cdn.example.com/img/cat.webp", "image/webp", body)
	dir := t.TempDir()

	result, err := NewImage(fetcher, dir).ExtractURL(context.Background(), "https://cdn.example.com/img/cat.webp")
	require.NoError(t, err)

	require.NotNil(t, result.Image)
	assert.Equal(t, domain.MediaTypeWebP, result.Image.MediaType)
	assert.Equal(t, dir, filepath.Dir(result.Image.FilePath))
	assert.Equal(t, ".webp", filepath.Ext(result.Image.FilePath))
	assert.Equal(t, "https://cdn.example.com/img/cat.webp", result.Source)
	assert.Zero(t, result.WordCount)

	data, err := os.ReadFile(result.Image.FilePath)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestImageExtractURLStatusError(t *testing.T) {
	fetcher := newFakeFetcher().status("https://cdn.example.com/private.png", 403)
	dir := t.TempDir()

	_, err := NewImage(fetcher, dir).ExtractURL(context.Background(), "https://cdn.example.com/private.png")
	assert.Equal(t, apperr.CodeAuth, apperr.CodeOf(err))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
