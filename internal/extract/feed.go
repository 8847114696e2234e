package extract

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

const maxFeedItems = 50

// Feed renders RSS, Atom and JSON feeds as a markdown list of entries.
type Feed struct {
	parser *gofeed.Parser
}

func NewFeed() *Feed {
	return &Feed{parser: gofeed.NewParser()}
}

// IsFeed reports whether body looks like a feed the parser understands.
func IsFeed(body string) bool {
	return gofeed.DetectFeedType(strings.NewReader(body)) != gofeed.FeedTypeUnknown
}

func (f *Feed) Parse(body, source string) (*domain.ExtractionResult, error) {
	parsed, err := f.parser.ParseString(body)
	if err != nil {
		return nil, apperr.Wrap(sourceFeed, apperr.CodeUnknown, "parse feed", err)
	}

	var b strings.Builder

	if desc := strings.TrimSpace(parsed.Description); desc != "" {
		b.WriteString(plainText(desc))
		b.WriteString("\n\n")
	}

	for i, item := range parsed.Items {
		if i == maxFeedItems {
			break
		}

		title := cmp.Or(strings.TrimSpace(item.Title), item.Link, "Untitled")
		fmt.Fprintf(&b, "- %s", title)

		if item.Link != "" && item.Link != title {
			fmt.Fprintf(&b, " (%s)", item.Link)
		}
		if published := feedItemTime(item); !published.IsZero() {
			fmt.Fprintf(&b, ", %s", published.UTC().Format(time.DateOnly))
		}
		b.WriteString("\n")

		if desc := plainText(cmp.Or(item.Description, item.Content)); desc != "" {
			fmt.Fprintf(&b, "  %s\n", desc)
		}
	}

	result := domain.NewExtractionResult(normalizeText(b.String()), source)
	result.Title = strings.TrimSpace(parsed.Title)
	if len(parsed.Authors) > 0 && parsed.Authors[0] != nil {
		result.Author = parsed.Authors[0].Name
	}
	if parsed.UpdatedParsed != nil {
		result.Date = parsed.UpdatedParsed.UTC().Format(time.RFC3339)
	} else if parsed.PublishedParsed != nil {
		result.Date = parsed.PublishedParsed.UTC().Format(time.RFC3339)
	}
	result.Partial = len(parsed.Items) > maxFeedItems

	return &result, nil
}

func feedItemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return time.Time{}
	}
}

// plainText strips markup from feed descriptions, which are often HTML.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}
