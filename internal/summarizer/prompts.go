package summarizer

import (
	"fmt"
	"strings"

	"tldr/internal/domain"
)

type Style string

const (
	StyleStandard Style = "standard"
	StyleBrief    Style = "brief"
	StyleDetailed Style = "detailed"
	StyleELI5     Style = "eli5"
)

func Styles() []Style {
	return []Style{StyleStandard, StyleBrief, StyleDetailed, StyleELI5}
}

func ParseStyle(s string) (Style, error) {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if style == "" {
		return StyleStandard, nil
	}

	for _, known := range Styles() {
		if style == known {
			return style, nil
		}
	}

	return "", fmt.Errorf("unknown summary style %q", s)
}

const baseSystemPrompt = `You write TL;DR summaries of content the user could not read in full.

Rules:
- Lead with the single most important takeaway.
- Keep names, numbers, dates and calls to action that matter.
- Never invent facts that are not in the content.
- Use Markdown.`

var stylePrompts = map[Style]string{
	StyleStandard: `Format:
- One bold sentence with the takeaway.
- Then 3 to 5 bullet points with the key details.`,
	StyleBrief: `Format:
- At most two sentences, no lists.
- 40 words or fewer.`,
	StyleDetailed: `Format:
- A one paragraph overview.
- Then sections with headings for each major topic, with bullet points.
- End with a short "Bottom line" line.`,
	StyleELI5: `Format:
- Explain it like the reader is five years old.
- Short sentences, everyday words, one simple analogy.
- No jargon; if a term is unavoidable, explain it.`,
}

const speechSystemPrompt = `Rewrite the Markdown summary so it can be read aloud.

Rules:
- Plain text only: no Markdown, bullets, headings, links or emojis.
- Turn lists into flowing sentences.
- Spell out symbols and abbreviations the way a person would say them.
- Keep the meaning and the language of the input. Do not add content.`

const chatSystemPrompt = `You answer follow-up questions about content the user summarized earlier.
Answer from the content below. If it does not contain the answer, say so.
Be concise and use Markdown.`

// SystemPrompt builds the summary instructions for a style and an optional
// target language.
func SystemPrompt(style Style, language string) string {
	var sb strings.Builder

	sb.WriteString(baseSystemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(stylePrompts[style])
	sb.WriteString("\n\n")
	sb.WriteString(languageRule(language))

	return sb.String()
}

func languageRule(language string) string {
	if language = strings.TrimSpace(language); language != "" {
		return fmt.Sprintf("Write the summary in %s.", language)
	}

	return "Write the summary in the same language as the content."
}

// UserPrompt lays out the metadata lines followed by the content.
func UserPrompt(extraction *domain.ExtractionResult) string {
	var sb strings.Builder

	writeField := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&sb, "%s: %s\n", name, value)
		}
	}

	writeField("Title", extraction.Title)
	writeField("Author", extraction.Author)
	writeField("Date", extraction.Date)
	writeField("Source", extraction.Source)

	if extraction.Partial {
		sb.WriteString("Note: the content is incomplete, say so if it matters.\n")
	}

	if extraction.Content == "" && extraction.Image != nil {
		sb.WriteString("\nSummarize the attached image.")
		return sb.String()
	}

	sb.WriteString("\nContent:\n")
	sb.WriteString(extraction.Content)

	return sb.String()
}

func chatPrompt(result *domain.TldrResult) string {
	var sb strings.Builder

	sb.WriteString(chatSystemPrompt)
	sb.WriteString("\n\nSummary:\n")
	sb.WriteString(result.Summary)
	sb.WriteString("\n\n")
	sb.WriteString(UserPrompt(&result.Extraction))

	return sb.String()
}
