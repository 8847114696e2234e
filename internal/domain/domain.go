package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type InputType string

const (
	InputURL        InputType = "url"
	InputURLPDF     InputType = "url:pdf"
	InputURLImage   InputType = "url:image"
	InputURLYouTube InputType = "url:youtube"
	InputURLSlack   InputType = "url:slack"
	InputURLNotion  InputType = "url:notion"
	InputURLArxiv   InputType = "url:arxiv"
	InputURLGitHub  InputType = "url:github"
	InputFile       InputType = "file"
	InputFilePDF    InputType = "file:pdf"
	InputFileImage  InputType = "file:image"
	InputText       InputType = "text"
)

func (t InputType) IsURL() bool {
	return t == InputURL || strings.HasPrefix(string(t), "url:")
}

func (t InputType) IsFile() bool {
	return t == InputFile || strings.HasPrefix(string(t), "file:")
}

type ClassifiedInput struct {
	Type  InputType
	Value string
}

const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeGIF  = "image/gif"
	MediaTypeWebP = "image/webp"
)

// ImageData carries an image for multimodal backends. FilePath, when set,
// points at a file whose lifecycle belongs to the caller.
type ImageData struct {
	Base64    string `json:"base64"`
	MediaType string `json:"mediaType"`
	FilePath  string `json:"filePath,omitempty"`
}

type ExtractionResult struct {
	Title     string     `json:"title,omitempty"`
	Author    string     `json:"author,omitempty"`
	Date      string     `json:"date,omitempty"`
	Content   string     `json:"content"`
	WordCount int        `json:"wordCount"`
	Source    string     `json:"source"`
	Partial   bool       `json:"partial,omitempty"`
	Image     *ImageData `json:"image,omitempty"`
}

// NewExtractionResult keeps WordCount in step with Content.
func NewExtractionResult(content, source string) ExtractionResult {
	return ExtractionResult{
		Content:   content,
		WordCount: CountWords(content),
		Source:    source,
	}
}

func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Truncate cuts Content to at most maxChars runes, recomputes WordCount and
// marks the result partial. It reports whether anything was cut.
func (r *ExtractionResult) Truncate(maxChars int) bool {
	if maxChars <= 0 || utf8.RuneCountInString(r.Content) <= maxChars {
		return false
	}

	runes := []rune(r.Content)
	r.Content = string(runes[:maxChars])
	r.WordCount = CountWords(r.Content)
	r.Partial = true

	return true
}

type FetchResult struct {
	Body        string
	ContentType string
	// URL is the final URL after redirects; relative links resolve against it.
	URL    string
	Status int
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type TldrResult struct {
	Summary    string           `json:"summary"`
	Provider   string           `json:"provider"`
	Model      string           `json:"model"`
	Extraction ExtractionResult `json:"extraction"`
	Duration   time.Duration    `json:"duration"`
}
