package extract

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tldr/internal/apperr"
)

const notionPageID = "01234567-89ab-cdef-0123-456789abcdef"

type fakeNotion struct {
	page     *notionapi.Page
	children map[string][]*notionapi.GetChildrenResponse
	err      error
	calls    []string
}

func (f *fakeNotion) GetPage(context.Context, string) (*notionapi.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeNotion) GetChildren(_ context.Context, blockID, cursor string) (*notionapi.GetChildrenResponse, error) {
	f.calls = append(f.calls, blockID+"@"+cursor)

	pages := f.children[blockID]
	idx := 0
	if cursor != "" {
		idx = 1
	}
	if idx >= len(pages) {
		return &notionapi.GetChildrenResponse{}, nil
	}

	return pages[idx], nil
}

func notionText(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s}}
}

func basic(id string, typ notionapi.BlockType, hasChildren bool) notionapi.BasicBlock {
	return notionapi.BasicBlock{ID: notionapi.BlockID(id), Type: typ, HasChildren: hasChildren}
}

func childPage(id, title string) *notionapi.ChildPageBlock {
	block := &notionapi.ChildPageBlock{BasicBlock: basic(id, notionapi.BlockTypeChildPage, true)}
	block.ChildPage.Title = title
	return block
}

func TestParseNotionID(t *testing.T) {
	urls := []string{
		"https://www.notion.so/acme/My-Page-0123456789abcdef0123456789abcdef",
		"https://www.notion.so/0123456789abcdef0123456789abcdef",
		"https://www.notion.so/acme/01234567-89ab-cdef-0123-456789abcdef",
		"https://www.notion.so/acme/Board-ffffffffffffffffffffffffffffffff?p=0123456789abcdef0123456789abcdef",
		"https://acme.notion.site/Public-Doc-0123456789ABCDEF0123456789ABCDEF",
	}

	for _, u := range urls {
		id, ok := ParseNotionID(u)
		assert.True(t, ok, u)
		assert.Equal(t, notionPageID, id, u)
	}

	_, ok := ParseNotionID("https://www.notion.so/acme/Just-A-Slug")
	assert.False(t, ok)
}

func TestNotionExtractRendersBlocks(t *testing.T) {
	api := &fakeNotion{
		page: &notionapi.Page{
			Properties: notionapi.Properties{
				"Name": &notionapi.TitleProperty{Title: notionText("Launch plan")},
			},
		},
		children: map[string][]*notionapi.GetChildrenResponse{
			notionPageID: {
				{
					Results: []notionapi.Block{
						&notionapi.Heading1Block{BasicBlock: basic("h1", notionapi.BlockTypeHeading1, false), Heading1: notionapi.Heading{RichText: notionText("Goals")}},
						&notionapi.BulletedListItemBlock{BasicBlock: basic("b1", notionapi.BlockTypeBulletedListItem, true), BulletedListItem: notionapi.ListItem{RichText: notionText("Ship")}},
					},
					HasMore:    true,
					NextCursor: "next",
				},
				{
					Results: []notionapi.Block{
						&notionapi.ToDoBlock{BasicBlock: basic("t1", notionapi.BlockTypeToDo, false), ToDo: notionapi.ToDo{RichText: notionText("Write docs"), Checked: true}},
						childPage("c1", "Appendix"),
						&notionapi.DividerBlock{BasicBlock: basic("d1", notionapi.BlockTypeDivider, false)},
					},
				},
			},
			"b1": {{
				Results: []notionapi.Block{
					&notionapi.ParagraphBlock{BasicBlock: basic("p1", notionapi.BlockTypeParagraph, true), Paragraph: notionapi.Paragraph{RichText: notionText("on Friday")}},
				},
			}},
			"p1": {{
				Results: []notionapi.Block{
					&notionapi.ParagraphBlock{BasicBlock: basic("p2", notionapi.BlockTypeParagraph, false), Paragraph: notionapi.Paragraph{RichText: notionText("too deep")}},
				},
			}},
		},
	}

	result, err := NewNotion(api, 2, nil).Extract(context.Background(),
		"https://www.notion.so/acme/Launch-0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	assert.Equal(t, "Launch plan", result.Title)
	assert.Equal(t, "# Goals\n- Ship\n  on Friday\n- [x] Write docs\n[Page: Appendix]\n---", result.Content)
	assert.NotContains(t, result.Content, "too deep")
	assert.Equal(t, []string{notionPageID + "@", "b1@", notionPageID + "@next"}, api.calls)
}

func TestNotionExtractNoToken(t *testing.T) {
	_, err := NewNotion(nil, 0, nil).Extract(context.Background(), "https://www.notion.so/0123456789abcdef0123456789abcdef")
	assert.Equal(t, apperr.CodeNoToken, apperr.CodeOf(err))
	assert.Nil(t, NewNotionClient(""))
}

func TestNotionExtractInvalidURL(t *testing.T) {
	_, err := NewNotion(&fakeNotion{}, 0, nil).Extract(context.Background(), "https://www.notion.so/acme")
	assert.Equal(t, apperr.CodeInvalidURL, apperr.CodeOf(err))
}

func TestNotionErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Code
	}{
		{"not found", &notionapi.Error{Status: http.StatusNotFound, Code: "object_not_found"}, apperr.CodeNotFound},
		{"unauthorized", &notionapi.Error{Status: http.StatusUnauthorized, Code: "unauthorized"}, apperr.CodeAuth},
		{"restricted", &notionapi.Error{Status: http.StatusForbidden, Code: "restricted_resource"}, apperr.CodeAuth},
		{"rate limited", &notionapi.Error{Status: http.StatusTooManyRequests, Code: "rate_limited"}, apperr.CodeRateLimit},
		{"transport", errors.New("connection reset"), apperr.CodeNetwork},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewNotion(&fakeNotion{err: test.err}, 0, nil).Extract(context.Background(),
				"https://www.notion.so/0123456789abcdef0123456789abcdef")
			assert.Equal(t, test.want, apperr.CodeOf(err))
		})
	}
}
