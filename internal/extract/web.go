package extract

import (
	"cmp"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"tldr/internal/domain"
	"tldr/internal/fetch"
)

const (
	partialMaxTextChars = 200
	partialMinHTMLChars = 5000
)

// dateMetaKeys are tried in order. Each key is matched against the property,
// name and itemprop attributes of <meta> tags.
var dateMetaKeys = []string{
	"article:published_time",
	"og:published_time",
	"datePublished",
	"date",
	"DC.date.issued",
	"pubdate",
	"sailthru.date",
	"parsely-pub-date",
}

type Web struct {
	fetcher Fetcher
	pdf     *PDF
	feed    *Feed
	log     *slog.Logger
}

func NewWeb(fetcher Fetcher, pdf *PDF, feed *Feed, log *slog.Logger) *Web {
	if log == nil {
		log = slog.Default()
	}

	return &Web{fetcher: fetcher, pdf: pdf, feed: feed, log: log}
}

func (w *Web) Extract(ctx context.Context, rawURL string) (*domain.ExtractionResult, error) {
	res, err := w.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err = statusError(sourceWeb, res); err != nil {
		return nil, err
	}

	mediaType := fetch.MediaType(res.ContentType)

	switch {
	case mediaType == "application/pdf":
		return w.pdf.FromBytes([]byte(res.Body), res.URL)
	case isFeedMediaType(mediaType) && IsFeed(res.Body):
		return w.feed.Parse(res.Body, res.URL)
	}

	return w.parseArticle(ctx, res.Body, res.URL), nil
}

func isFeedMediaType(mediaType string) bool {
	switch mediaType {
	case "application/rss+xml",
		"application/atom+xml",
		"application/feed+json",
		"application/xml",
		"text/xml":
		return true
	default:
		return false
	}
}

// parseArticle never fails: a page readability cannot make sense of gives an
// empty result.
func (w *Web) parseArticle(ctx context.Context, html, pageURL string) *domain.ExtractionResult {
	meta := scrapeMeta(html)

	var title, byline, text string

	if u, err := url.Parse(pageURL); err == nil {
		article, readErr := readability.FromReader(strings.NewReader(html), u)
		if readErr != nil {
			w.log.DebugContext(ctx, "No readable article",
				"error", readErr,
				"url", pageURL)
		} else {
			title = strings.TrimSpace(article.Title)
			byline = strings.TrimSpace(article.Byline)
			text = normalizeText(article.TextContent)
		}
	}

	result := domain.NewExtractionResult(text, pageURL)
	result.Title = cmp.Or(title, meta.title)
	result.Author = cmp.Or(byline, meta.author)
	result.Date = meta.date
	result.Partial = utf8.RuneCountInString(text) < partialMaxTextChars &&
		utf8.RuneCountInString(html) > partialMinHTMLChars

	if result.Partial {
		w.log.InfoContext(ctx, "Page looks paywalled or script-rendered",
			"url", pageURL,
			"textChars", utf8.RuneCountInString(text),
			"htmlChars", utf8.RuneCountInString(html))
	}

	return &result
}

type pageMeta struct {
	title  string
	author string
	date   string
}

func scrapeMeta(html string) pageMeta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pageMeta{}
	}

	values := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}

		for _, attr := range []string{"property", "name", "itemprop"} {
			key := strings.ToLower(strings.TrimSpace(s.AttrOr(attr, "")))
			if key == "" {
				continue
			}
			if _, seen := values[key]; !seen {
				values[key] = content
			}
		}
	})

	var meta pageMeta

	for _, key := range dateMetaKeys {
		if v := values[strings.ToLower(key)]; v != "" {
			meta.date = v
			break
		}
	}
	if meta.date == "" {
		meta.date = strings.TrimSpace(doc.Find("time[datetime]").First().AttrOr("datetime", ""))
	}

	meta.title = cmp.Or(
		values["og:title"],
		values["twitter:title"],
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	meta.author = cmp.Or(values["author"], values["article:author"])

	return meta
}
