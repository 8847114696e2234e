package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tldr/internal/apperr"
	"tldr/internal/domain"
	"tldr/internal/history"
	"tldr/internal/markdown"
)

// formatSummary renders a finished summary. It falls back to plain text
// when the MarkdownV2 rendering would not fit into one message.
func formatSummary(result *domain.TldrResult) outgoing {
	ext := result.Extraction
	title := cmpTitle(ext)

	var b strings.Builder
	b.WriteString(markdown.Bold(title))
	b.WriteString("\n\n")
	b.WriteString(markdown.FromCommonMark(strings.TrimSpace(result.Summary)))
	b.WriteString("\n\n")
	if isLink(ext.Source) {
		b.WriteString(markdown.Link("Source", ext.Source))
		b.WriteString(" · ")
	}
	b.WriteString("_" + markdown.EscapeV2(footer(result)) + "_")

	if text := b.String(); len([]rune(text)) <= telegramMessageMaxLength {
		return outgoing{text: text, markdown: true}
	}

	plain := title + "\n\n" + strings.TrimSpace(result.Summary)
	return outgoing{text: truncateRunes(plain, telegramMessageMaxLength)}
}

// formatAnswer renders a follow-up answer the same way.
func formatAnswer(answer string) outgoing {
	if text := markdown.FromCommonMark(strings.TrimSpace(answer)); len([]rune(text)) <= telegramMessageMaxLength {
		return outgoing{text: text, markdown: true}
	}
	return outgoing{text: truncateRunes(strings.TrimSpace(answer), telegramMessageMaxLength)}
}

func footer(result *domain.TldrResult) string {
	parts := []string{result.Model}
	if result.Extraction.WordCount > 0 {
		parts = append(parts, fmt.Sprintf("%d words", result.Extraction.WordCount))
	}
	if result.Extraction.Partial {
		parts = append(parts, "truncated")
	}
	parts = append(parts, result.Duration.Round(100*time.Millisecond).String())

	return strings.Join(parts, " · ")
}

func cmpTitle(ext domain.ExtractionResult) string {
	switch {
	case ext.Title != "":
		return ext.Title
	case isLink(ext.Source):
		return ext.Source
	default:
		return "Summary"
	}
}

func isLink(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func formatHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return "📭 No summaries yet\\. Send me a link\\."
	}

	var b strings.Builder
	b.WriteString("🗂 *Recent summaries*\n")

	for i, entry := range entries {
		ext := entry.Result.Extraction
		line := fmt.Sprintf("\n%d\\. ", i+1)

		if isLink(ext.Source) {
			line += markdown.Link(cmpTitle(ext), ext.Source)
		} else {
			line += markdown.EscapeV2(cmpTitle(ext))
		}

		line += " " + markdown.EscapeV2("("+entry.CreatedAt.Format("Jan 2")+")")
		b.WriteString(line)
	}

	return b.String()
}

// errorText tells the user what went wrong in a way they can act on.
func errorText(err error) string {
	message := "something went wrong"

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}

	switch apperr.CodeOf(err).Category() {
	case apperr.CategoryInput:
		return "🤔 I can't read that: " + message
	case apperr.CategoryConfig:
		return "⚙️ Configuration problem: " + message
	case apperr.CategoryTransient:
		return "⏳ " + message + ". Try again in a minute."
	default:
		return "❌ Failed: " + message
	}
}
