package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jomei/notionapi"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

const notionPageSize = 100

var notionHexIDRe = regexp.MustCompile(`(?i)[0-9a-f]{32}$`)

// NotionAPI is the subset of the Notion API the extractor uses. IDs are
// dashed UUIDs.
type NotionAPI interface {
	GetPage(ctx context.Context, pageID string) (*notionapi.Page, error)
	GetChildren(ctx context.Context, blockID, cursor string) (*notionapi.GetChildrenResponse, error)
}

type notionClient struct {
	client *notionapi.Client
}

// NewNotionClient returns nil for an empty token.
func NewNotionClient(token string) NotionAPI {
	if token == "" {
		return nil
	}

	return &notionClient{client: notionapi.NewClient(notionapi.Token(token))}
}

func (c *notionClient) GetPage(ctx context.Context, pageID string) (*notionapi.Page, error) {
	return c.client.Page.Get(ctx, notionapi.PageID(pageID))
}

func (c *notionClient) GetChildren(
	ctx context.Context,
	blockID, cursor string,
) (*notionapi.GetChildrenResponse, error) {
	return c.client.Block.GetChildren(ctx, notionapi.BlockID(blockID), &notionapi.Pagination{
		StartCursor: notionapi.Cursor(cursor),
		PageSize:    notionPageSize,
	})
}

type Notion struct {
	api      NotionAPI
	maxDepth int
	log      *slog.Logger
}

func NewNotion(api NotionAPI, maxDepth int, log *slog.Logger) *Notion {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if log == nil {
		log = slog.Default()
	}

	return &Notion{api: api, maxDepth: maxDepth, log: log}
}

// ParseNotionID finds the page ID in notion.so and notion.site links and
// returns it as a dashed UUID.
func ParseNotionID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}

	candidates := []string{u.Query().Get("p")}
	if segments := strings.Split(strings.Trim(u.Path, "/"), "/"); len(segments) > 0 {
		candidates = append(candidates, segments[len(segments)-1])
	}

	for _, candidate := range candidates {
		compact := strings.ReplaceAll(candidate, "-", "")

		hex := notionHexIDRe.FindString(compact)
		if hex == "" {
			continue
		}

		id, parseErr := uuid.Parse(hex)
		if parseErr != nil {
			continue
		}

		return id.String(), true
	}

	return "", false
}

func (n *Notion) Extract(ctx context.Context, rawURL string) (*domain.ExtractionResult, error) {
	if n.api == nil {
		return nil, apperr.New(sourceNotion, apperr.CodeNoToken, "NOTION_TOKEN is not set")
	}

	pageID, ok := ParseNotionID(rawURL)
	if !ok {
		return nil, apperr.New(sourceNotion, apperr.CodeInvalidURL,
			fmt.Sprintf("no page ID in %s", rawURL))
	}

	if err := apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	page, err := n.api.GetPage(ctx, pageID)
	if err != nil {
		return nil, notionError(ctx, err)
	}

	var lines []string
	if err = n.render(ctx, pageID, 1, &lines); err != nil {
		return nil, err
	}

	result := domain.NewExtractionResult(strings.TrimSpace(strings.Join(lines, "\n")), rawURL)
	result.Title = notionTitle(page)
	if !page.LastEditedTime.IsZero() {
		result.Date = page.LastEditedTime.UTC().Format(time.RFC3339)
	}

	return &result, nil
}

// render appends the children of blockID. Nested children are read until
// depth reaches maxDepth.
func (n *Notion) render(ctx context.Context, blockID string, depth int, lines *[]string) error {
	indent := strings.Repeat("  ", depth-1)

	for cursor := ""; ; {
		if err := apperr.CheckAborted(ctx); err != nil {
			return err
		}

		resp, err := n.api.GetChildren(ctx, blockID, cursor)
		if err != nil {
			return notionError(ctx, err)
		}

		for _, block := range resp.Results {
			if line, ok := notionBlockLine(block); ok {
				*lines = append(*lines, indent+line)
			}

			if !block.GetHasChildren() || block.GetType() == notionapi.BlockTypeChildPage {
				continue
			}

			if depth >= n.maxDepth {
				n.log.DebugContext(ctx, "Skipping nested Notion blocks",
					"blockID", block.GetID(),
					"depth", depth)
				continue
			}

			if err = n.render(ctx, string(block.GetID()), depth+1, lines); err != nil {
				return err
			}
		}

		if !resp.HasMore || resp.NextCursor == "" {
			return nil
		}
		cursor = string(resp.NextCursor)
	}
}

//nolint:gocyclo,cyclop // One case per block type.
func notionBlockLine(block notionapi.Block) (string, bool) {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return richText(b.Paragraph.RichText), true
	case *notionapi.Heading1Block:
		return "# " + richText(b.Heading1.RichText), true
	case *notionapi.Heading2Block:
		return "## " + richText(b.Heading2.RichText), true
	case *notionapi.Heading3Block:
		return "### " + richText(b.Heading3.RichText), true
	case *notionapi.BulletedListItemBlock:
		return "- " + richText(b.BulletedListItem.RichText), true
	case *notionapi.NumberedListItemBlock:
		return "1. " + richText(b.NumberedListItem.RichText), true
	case *notionapi.ToDoBlock:
		box := "[ ]"
		if b.ToDo.Checked {
			box = "[x]"
		}
		return "- " + box + " " + richText(b.ToDo.RichText), true
	case *notionapi.ToggleBlock:
		return "- " + richText(b.Toggle.RichText), true
	case *notionapi.QuoteBlock:
		return "> " + richText(b.Quote.RichText), true
	case *notionapi.CalloutBlock:
		return "> " + richText(b.Callout.RichText), true
	case *notionapi.CodeBlock:
		return "```" + b.Code.Language + "\n" + richText(b.Code.RichText) + "\n```", true
	case *notionapi.EquationBlock:
		return "$$" + b.Equation.Expression + "$$", true
	case *notionapi.DividerBlock:
		return "---", true
	case *notionapi.ChildPageBlock:
		return "[Page: " + b.ChildPage.Title + "]", true
	case *notionapi.ChildDatabaseBlock:
		return "[Database: " + b.ChildDatabase.Title + "]", true
	case *notionapi.BookmarkBlock:
		return "[Bookmark](" + b.Bookmark.URL + ")", true
	case *notionapi.EmbedBlock:
		return "[Embed](" + b.Embed.URL + ")", true
	case *notionapi.LinkPreviewBlock:
		return "[Link](" + b.LinkPreview.URL + ")", true
	case *notionapi.ImageBlock:
		if caption := richText(b.Image.Caption); caption != "" {
			return "[Image: " + caption + "]", true
		}
		return "[Image]", true
	case *notionapi.TableRowBlock:
		cells := make([]string, 0, len(b.TableRow.Cells))
		for _, cell := range b.TableRow.Cells {
			cells = append(cells, richText(cell))
		}
		return "| " + strings.Join(cells, " | ") + " |", true
	default:
		return "", false
	}
}

func richText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.PlainText)
	}

	return b.String()
}

func notionTitle(page *notionapi.Page) string {
	for _, property := range page.Properties {
		if title, ok := property.(*notionapi.TitleProperty); ok {
			return strings.TrimSpace(richText(title.Title))
		}
	}

	return ""
}

func notionError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return apperr.Aborted(err)
	}

	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)

		switch {
		case apiErr.Status == http.StatusNotFound || apiErr.Code == "object_not_found":
			return apperr.Wrap(sourceNotion, apperr.CodeNotFound, msg, err)
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return apperr.Wrap(sourceNotion, apperr.CodeAuth, msg, err)
		case apiErr.Status == http.StatusTooManyRequests:
			return apperr.Wrap(sourceNotion, apperr.CodeRateLimit, msg, err)
		}
	}

	return apperr.Wrap(sourceNotion, apperr.CodeNetwork, err.Error(), err)
}
