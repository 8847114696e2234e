// Package classify maps raw user input to a typed input variant.
package classify

import (
	"regexp"
	"strings"

	"tldr/internal/domain"
)

const minQuotedLength = 2

var (
	httpSchemeRe = regexp.MustCompile(`(?i)^https?://`)

	// Platform patterns are checked in this order before extension patterns.
	slackRe      = regexp.MustCompile(`(?i)^https?://([a-z0-9-]+\.)*slack\.com(/|$)`)
	youtubeRe    = regexp.MustCompile(`(?i)^https?://((www|m|music)\.)?(youtube\.com|youtu\.be)(/|$)`)
	notionRe     = regexp.MustCompile(`(?i)^https?://([a-z0-9-]+\.)*(notion\.so|notion\.site)(/|$)`)
	arxivRe      = regexp.MustCompile(`(?i)^https?://((www|export)\.)?arxiv\.org(/|$)`)
	githubBlobRe = regexp.MustCompile(`(?i)^https?://(www\.)?github\.com/[^/]+/[^/]+/blob/[^/]+/.+`)

	pdfExtRe   = regexp.MustCompile(`(?i)\.pdf$`)
	imageExtRe = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp)$`)

	pathShapeRe = regexp.MustCompile(`^(/|~/|\./|\.\./)`)

	// Only spaces and parentheses are unescaped; `\n`, `\t` and other
	// escaped alphanumerics are left alone.
	escapedPathCharRe = regexp.MustCompile(`\\([ ()])`)
)

// Classify never fails: anything unrecognized is text.
func Classify(raw string) domain.ClassifiedInput {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.ClassifiedInput{Type: domain.InputText, Value: ""}
	}

	if httpSchemeRe.MatchString(trimmed) {
		return domain.ClassifiedInput{Type: classifyURL(trimmed), Value: trimmed}
	}

	if path := NormalizePath(trimmed); pathShapeRe.MatchString(path) {
		return domain.ClassifiedInput{Type: classifyFile(path), Value: path}
	}

	return domain.ClassifiedInput{Type: domain.InputText, Value: trimmed}
}

// NormalizePath strips drag-and-drop artifacts: one pair of matching
// wrapping quotes and backslash escapes before spaces and parentheses.
func NormalizePath(raw string) string {
	s := strings.TrimSpace(raw)

	if len(s) >= minQuotedLength {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			s = s[1 : len(s)-1]
		}
	}

	return escapedPathCharRe.ReplaceAllString(s, "$1")
}

func classifyURL(u string) domain.InputType {
	pathPart := stripQueryAndFragment(u)

	switch {
	case slackRe.MatchString(u):
		return domain.InputURLSlack
	case youtubeRe.MatchString(u):
		return domain.InputURLYouTube
	case notionRe.MatchString(u):
		return domain.InputURLNotion
	case arxivRe.MatchString(u):
		if pdfExtRe.MatchString(pathPart) {
			return domain.InputURLPDF
		}
		return domain.InputURLArxiv
	case githubBlobRe.MatchString(u):
		return domain.InputURLGitHub
	case pdfExtRe.MatchString(pathPart):
		return domain.InputURLPDF
	case imageExtRe.MatchString(pathPart):
		return domain.InputURLImage
	default:
		return domain.InputURL
	}
}

func classifyFile(path string) domain.InputType {
	switch {
	case pdfExtRe.MatchString(path):
		return domain.InputFilePDF
	case imageExtRe.MatchString(path):
		return domain.InputFileImage
	default:
		return domain.InputFile
	}
}

func stripQueryAndFragment(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}

	return u
}
