package extract

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

const slackPageLimit = 200

var (
	slackArchivePathRe = regexp.MustCompile(`^/archives/([A-Z0-9]+)/p(\d{16})$`)
	slackMentionRe     = regexp.MustCompile(`<@([A-Z0-9]+)(\|[^>]*)?>`)
)

// SlackAPI is the subset of *slack.Client the extractor uses.
type SlackAPI interface {
	GetConversationRepliesContext(
		ctx context.Context,
		params *slack.GetConversationRepliesParameters,
	) ([]slack.Message, bool, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

type Slack struct {
	api      SlackAPI
	maxPages int
	log      *slog.Logger
}

// NewSlack takes a nil api when no token is configured; Extract then reports
// NO_TOKEN.
func NewSlack(api SlackAPI, maxPages int, log *slog.Logger) *Slack {
	if maxPages <= 0 {
		maxPages = 2
	}
	if log == nil {
		log = slog.Default()
	}

	return &Slack{api: api, maxPages: maxPages, log: log}
}

// NewSlackClient returns nil for an empty token.
func NewSlackClient(token string) SlackAPI {
	if token == "" {
		return nil
	}

	return slack.New(token)
}

// ParseSlackURL returns the channel and message timestamp of a permalink. A
// thread_ts query parameter points at the thread root and wins.
func ParseSlackURL(rawURL string) (channel, ts string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", false
	}

	m := slackArchivePathRe.FindStringSubmatch(strings.TrimSuffix(u.Path, "/"))
	if m == nil {
		return "", "", false
	}

	channel = m[1]
	ts = m[2][:10] + "." + m[2][10:]

	if threadTS := u.Query().Get("thread_ts"); threadTS != "" {
		ts = threadTS
	}

	return channel, ts, true
}

func (s *Slack) Extract(ctx context.Context, rawURL string) (*domain.ExtractionResult, error) {
	if s.api == nil {
		return nil, apperr.New(sourceSlack, apperr.CodeNoToken, "SLACK_TOKEN is not set")
	}

	channel, ts, ok := ParseSlackURL(rawURL)
	if !ok {
		return nil, apperr.New(sourceSlack, apperr.CodeInvalidURL,
			fmt.Sprintf("not a Slack message link: %s", rawURL))
	}

	messages, truncated, err := s.replies(ctx, channel, ts)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, apperr.New(sourceSlack, apperr.CodeNotFound,
			fmt.Sprintf("no messages in thread %s", ts))
	}

	names := newSlackNames(s.api, s.log)

	var b strings.Builder
	for _, msg := range messages {
		author := names.author(ctx, msg)
		text := slackMentionRe.ReplaceAllStringFunc(msg.Text, func(mention string) string {
			id := slackMentionRe.FindStringSubmatch(mention)[1]
			return "@" + names.lookup(ctx, id)
		})

		b.WriteString(author)
		if when := slackTime(msg.Timestamp); !when.IsZero() {
			fmt.Fprintf(&b, " (%s)", when.UTC().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(&b, ": %s\n\n", strings.TrimSpace(text))
	}

	if err = apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	result := domain.NewExtractionResult(strings.TrimSpace(b.String()), rawURL)
	result.Title = fmt.Sprintf("Slack thread (%d messages)", len(messages))
	result.Author = names.author(ctx, messages[0])
	if when := slackTime(messages[0].Timestamp); !when.IsZero() {
		result.Date = when.UTC().Format(time.RFC3339)
	}
	result.Partial = truncated

	return &result, nil
}

// replies reads at most maxPages pages. truncated reports that more remained.
func (s *Slack) replies(ctx context.Context, channel, ts string) ([]slack.Message, bool, error) {
	var (
		all    []slack.Message
		cursor string
	)

	for page := 0; page < s.maxPages; page++ {
		if err := apperr.CheckAborted(ctx); err != nil {
			return nil, false, err
		}

		msgs, hasMore, next, err := s.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: ts,
			Cursor:    cursor,
			Limit:     slackPageLimit,
		})
		if err != nil {
			return nil, false, slackError(ctx, err)
		}

		all = append(all, msgs...)

		if !hasMore || next == "" {
			return all, false, nil
		}
		cursor = next
	}

	s.log.InfoContext(ctx, "Slack thread truncated",
		"channel", channel,
		"ts", ts,
		"maxPages", s.maxPages,
		"messages", len(all))

	return all, true, nil
}

var (
	slackNotFoundErrors = []string{"channel_not_found", "thread_not_found", "message_not_found"}
	slackAuthErrors     = []string{
		"not_authed", "invalid_auth", "account_inactive",
		"token_revoked", "missing_scope", "not_in_channel",
	}
)

func slackError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return apperr.Aborted(err)
	}

	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return apperr.Wrap(sourceSlack, apperr.CodeRateLimit,
			fmt.Sprintf("rate limited, retry after %s", rateErr.RetryAfter), err)
	}

	msg := err.Error()
	for _, code := range slackNotFoundErrors {
		if strings.Contains(msg, code) {
			return apperr.Wrap(sourceSlack, apperr.CodeNotFound, msg, err)
		}
	}
	for _, code := range slackAuthErrors {
		if strings.Contains(msg, code) {
			return apperr.Wrap(sourceSlack, apperr.CodeAuth, msg, err)
		}
	}

	return apperr.Wrap(sourceSlack, apperr.CodeNetwork, msg, err)
}

// slackNames caches user lookups for one extraction. Failed lookups are
// cached as the raw ID.
type slackNames struct {
	api   SlackAPI
	log   *slog.Logger
	names map[string]string
}

func newSlackNames(api SlackAPI, log *slog.Logger) *slackNames {
	return &slackNames{api: api, log: log, names: make(map[string]string)}
}

func (n *slackNames) author(ctx context.Context, msg slack.Message) string {
	if msg.User != "" {
		return n.lookup(ctx, msg.User)
	}

	return cmp.Or(msg.Username, msg.BotID, "unknown")
}

func (n *slackNames) lookup(ctx context.Context, userID string) string {
	if name, ok := n.names[userID]; ok {
		return name
	}

	name := userID

	user, err := n.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		n.log.DebugContext(ctx, "Failed to resolve Slack user",
			"error", err,
			"userID", userID)
	} else if user != nil {
		name = cmp.Or(user.Profile.DisplayName, user.RealName, user.Name, userID)
	}

	n.names[userID] = name

	return name
}

func slackTime(ts string) time.Time {
	sec, frac, _ := strings.Cut(ts, ".")

	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}

	var usec int64
	if frac != "" {
		usec, _ = strconv.ParseInt((frac + "000000")[:6], 10, 64)
	}

	return time.Unix(s, usec*int64(time.Microsecond))
}
