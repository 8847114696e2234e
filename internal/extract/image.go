package extract

import (
	"context"
	"encoding/base64"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

var imageMediaTypes = map[string]string{
	".jpg":  domain.MediaTypeJPEG,
	".jpeg": domain.MediaTypeJPEG,
	".png":  domain.MediaTypePNG,
	".gif":  domain.MediaTypeGIF,
	".webp": domain.MediaTypeWebP,
}

// Image never produces text: the image itself goes to a multimodal backend.
type Image struct {
	fetcher Fetcher
	tempDir string
}

// NewImage downloads remote images into tempDir, or the OS default when empty.
func NewImage(fetcher Fetcher, tempDir string) *Image {
	return &Image{fetcher: fetcher, tempDir: tempDir}
}

// ImageMediaType infers the media type from the extension, defaulting to PNG.
func ImageMediaType(name string) string {
	if mediaType, ok := imageMediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mediaType
	}

	return domain.MediaTypePNG
}

func (i *Image) ExtractFile(ctx context.Context, filePath string) (*domain.ExtractionResult, error) {
	if err := apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	data, abs, err := readLocalFile(sourceImage, filePath)
	if err != nil {
		return nil, err
	}

	result := imageResult(data, abs, abs)
	result.Title = filepath.Base(abs)

	return result, nil
}

// ExtractURL downloads the image to a temp file. The caller owns the file at
// result.Image.FilePath and must remove it.
func (i *Image) ExtractURL(ctx context.Context, rawURL string) (*domain.ExtractionResult, error) {
	res, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err = statusError(sourceImage, res); err != nil {
		return nil, err
	}

	name := res.URL
	if u, parseErr := url.Parse(res.URL); parseErr == nil {
		name = u.Path
	}
	ext := strings.ToLower(path.Ext(name))
	if _, ok := imageMediaTypes[ext]; !ok {
		ext = ".png"
	}

	file, err := os.CreateTemp(i.tempDir, "tldr-image-*"+ext)
	if err != nil {
		return nil, apperr.Wrap(sourceImage, apperr.CodeUnknown, "create temp file", err)
	}

	if _, err = file.WriteString(res.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, apperr.Wrap(sourceImage, apperr.CodeUnknown, "write temp file", err)
	}
	if err = file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return nil, apperr.Wrap(sourceImage, apperr.CodeUnknown, "close temp file", err)
	}

	result := imageResult([]byte(res.Body), name, file.Name())
	result.Source = res.URL
	result.Title = path.Base(name)

	return result, nil
}

func imageResult(data []byte, name, filePath string) *domain.ExtractionResult {
	result := domain.NewExtractionResult("", filePath)
	result.Image = &domain.ImageData{
		Base64:    base64.StdEncoding.EncodeToString(data),
		MediaType: ImageMediaType(name),
		FilePath:  filePath,
	}

	return &result
}
