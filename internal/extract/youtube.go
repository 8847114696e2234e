package extract

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

const (
	youtubeWatchURL      = "https://www.youtube.com/watch?v=%s&hl=en"
	playerResponseMarker = "ytInitialPlayerResponse"
	captionTracksPath    = "captions.playerCaptionsTracklistRenderer.captionTracks"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Transcript is what a TranscriptFetcher returns for a video. Segments are
// kept as delivered.
type Transcript struct {
	Title    string
	Author   string
	Segments []string
}

type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (*Transcript, error)
}

type YouTube struct {
	transcripts TranscriptFetcher
}

func NewYouTube(transcripts TranscriptFetcher) *YouTube {
	return &YouTube{transcripts: transcripts}
}

func (y *YouTube) Extract(ctx context.Context, rawURL string) (*domain.ExtractionResult, error) {
	videoID, ok := VideoID(rawURL)
	if !ok {
		return nil, apperr.New(sourceYouTube, apperr.CodeInvalidURL,
			fmt.Sprintf("no video ID in %s", rawURL))
	}

	if err := apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	transcript, err := y.transcripts.FetchTranscript(ctx, videoID)
	if err != nil {
		return nil, err
	}

	// Segments already carry their own spacing, so they are not trimmed.
	content := strings.Join(transcript.Segments, " ")
	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(sourceYouTube, apperr.CodeNoTranscript,
			fmt.Sprintf("video %s has an empty transcript", videoID))
	}

	result := domain.NewExtractionResult(content, rawURL)
	result.Title = transcript.Title
	result.Author = transcript.Author

	return &result, nil
}

// VideoID accepts watch?v=, youtu.be/, /shorts/, /embed/, /live/ and /v/
// URLs.
func VideoID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string

	switch {
	case host == "youtu.be":
		id = segments[0]
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		switch segments[0] {
		case "watch":
			id = u.Query().Get("v")
		case "shorts", "embed", "live", "v":
			if len(segments) > 1 {
				id = segments[1]
			}
		}
	}

	if !videoIDRe.MatchString(id) {
		return "", false
	}

	return id, true
}

// WatchPageTranscripts reads caption tracks from the player response embedded
// in the watch page and downloads the chosen track.
type WatchPageTranscripts struct {
	fetcher Fetcher
}

func NewWatchPageTranscripts(fetcher Fetcher) *WatchPageTranscripts {
	return &WatchPageTranscripts{fetcher: fetcher}
}

func (w *WatchPageTranscripts) FetchTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	page, err := w.fetcher.Fetch(ctx, fmt.Sprintf(youtubeWatchURL, videoID))
	if err != nil {
		return nil, err
	}
	if err = statusError(sourceYouTube, page); err != nil {
		return nil, err
	}

	player, ok := playerResponse(page.Body)
	if !ok {
		return nil, apperr.New(sourceYouTube, apperr.CodeNoTranscript,
			fmt.Sprintf("video %s has no player response", videoID))
	}

	transcript := &Transcript{
		Title:  gjson.Get(player, "videoDetails.title").String(),
		Author: gjson.Get(player, "videoDetails.author").String(),
	}

	trackURL := pickCaptionTrack(gjson.Get(player, captionTracksPath))
	if trackURL == "" {
		reason := gjson.Get(player, "playabilityStatus.reason").String()
		if reason == "" {
			reason = "transcripts are disabled"
		}
		return nil, apperr.New(sourceYouTube, apperr.CodeNoTranscript,
			fmt.Sprintf("video %s: %s", videoID, reason))
	}

	track, err := w.fetcher.Fetch(ctx, trackURL)
	if err != nil {
		return nil, err
	}
	if err = statusError(sourceYouTube, track); err != nil {
		return nil, err
	}

	transcript.Segments, err = parseTimedText(track.Body)
	if err != nil {
		return nil, apperr.Wrap(sourceYouTube, apperr.CodeNoTranscript,
			fmt.Sprintf("video %s: unreadable transcript", videoID), err)
	}

	return transcript, nil
}

// pickCaptionTrack prefers manual English captions, then any English track,
// then whatever comes first.
func pickCaptionTrack(tracks gjson.Result) string {
	var english, first string

	for _, track := range tracks.Array() {
		baseURL := track.Get("baseUrl").String()
		if baseURL == "" {
			continue
		}
		if first == "" {
			first = baseURL
		}

		if !strings.HasPrefix(track.Get("languageCode").String(), "en") {
			continue
		}
		if track.Get("kind").String() != "asr" {
			return baseURL
		}
		if english == "" {
			english = baseURL
		}
	}

	if english != "" {
		return english
	}

	return first
}

// playerResponse cuts the JSON object assigned to ytInitialPlayerResponse out
// of the page.
func playerResponse(page string) (string, bool) {
	idx := strings.Index(page, playerResponseMarker)
	if idx < 0 {
		return "", false
	}

	rest := page[idx+len(playerResponseMarker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return "", false
	}

	obj, ok := jsonObject(rest[start:])
	if !ok || !gjson.Valid(obj) {
		return "", false
	}

	return obj, true
}

// jsonObject returns the balanced object at the start of s.
func jsonObject(s string) (string, bool) {
	depth := 0
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}

	return "", false
}

type timedText struct {
	Texts      []string         `xml:"text"`
	Paragraphs []timedParagraph `xml:"body>p"`
}

type timedParagraph struct {
	Text  string   `xml:",chardata"`
	Spans []string `xml:"s"`
}

// parseTimedText reads both the legacy <transcript><text> format and srv3
// <timedtext><body><p>.
func parseTimedText(body string) ([]string, error) {
	var doc timedText
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode timed text: %w", err)
	}

	segments := make([]string, 0, len(doc.Texts)+len(doc.Paragraphs))
	for _, text := range doc.Texts {
		segments = append(segments, html.UnescapeString(text))
	}
	for _, p := range doc.Paragraphs {
		text := p.Text
		if len(p.Spans) > 0 {
			text = strings.Join(p.Spans, "")
		}
		if text != "" {
			segments = append(segments, html.UnescapeString(text))
		}
	}

	if len(segments) == 0 {
		return nil, errors.New("no segments")
	}

	return segments, nil
}
