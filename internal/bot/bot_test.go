package bot

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tldr/internal/apperr"
	"tldr/internal/domain"
	"tldr/internal/history"
	"tldr/internal/ratelimiter"
)

const userID = int64(7)

type fakeTelegram struct {
	mu      sync.Mutex
	nextID  int
	sent    []*tgbot.SendMessageParams
	edits   []*tgbot.EditMessageTextParams
	answers []*tgbot.AnswerCallbackQueryParams
}

func (f *fakeTelegram) SendMessage(_ context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.sent = append(f.sent, params)

	return &models.Message{ID: 100 + f.nextID, Chat: models.Chat{ID: params.ChatID.(int64)}}, nil
}

func (f *fakeTelegram) EditMessageText(_ context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, params)

	return &models.Message{ID: params.MessageID}, nil
}

func (f *fakeTelegram) SendChatAction(context.Context, *tgbot.SendChatActionParams) (bool, error) {
	return true, nil
}

func (f *fakeTelegram) AnswerCallbackQuery(_ context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.answers = append(f.answers, params)

	return true, nil
}

func (f *fakeTelegram) lastEdit(t *testing.T) *tgbot.EditMessageTextParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.edits)
	return f.edits[len(f.edits)-1]
}

type fakeExtractor struct {
	inputs []string
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, raw string) (*domain.ExtractionResult, error) {
	f.inputs = append(f.inputs, raw)
	if f.err != nil {
		return nil, f.err
	}

	result := domain.NewExtractionResult("Go is a fast language.", raw)
	result.Title = "About Go"

	return &result, nil
}

type fakeSummarizer struct {
	chatMessages []domain.Message
	chatResult   *domain.TldrResult
	rewritten    string
	err          error
}

func (f *fakeSummarizer) Summarize(
	_ context.Context,
	extraction domain.ExtractionResult,
	onChunk func(string),
) (*domain.TldrResult, error) {
	if f.err != nil {
		return nil, f.err
	}

	onChunk("**Go** ")
	onChunk("is fast.")

	return &domain.TldrResult{
		Summary:    "**Go** is fast.",
		Provider:   "fake",
		Model:      "fake-1",
		Extraction: extraction,
		Duration:   1200 * time.Millisecond,
	}, nil
}

func (f *fakeSummarizer) RewriteForSpeech(_ context.Context, markdown string) (string, error) {
	f.rewritten = markdown
	return "Go is fast.", nil
}

func (f *fakeSummarizer) Chat(
	_ context.Context,
	result *domain.TldrResult,
	messages []domain.Message,
	onChunk func(string),
) (string, error) {
	f.chatResult = result
	f.chatMessages = messages
	onChunk("Because of its compiler.")
	return "Because of its compiler.", nil
}

type testBot struct {
	*Bot
	tg         *fakeTelegram
	extractor  *fakeExtractor
	summarizer *fakeSummarizer
	history    *history.Store
}

func newTestBot(t *testing.T, allowed ...int64) *testBot {
	t.Helper()

	log := slog.New(slog.DiscardHandler)

	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.sqlite"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	limiter := ratelimiter.New(ratelimiter.Rates{}, log)
	t.Cleanup(limiter.Stop)

	tb := &testBot{
		tg:         &fakeTelegram{},
		extractor:  &fakeExtractor{},
		summarizer: &fakeSummarizer{},
		history:    store,
	}

	tb.Bot = newBot(tb.tg, Deps{
		Extractor:    tb.extractor,
		Summarizer:   tb.summarizer,
		History:      store,
		AllowedUsers: allowed,
	}, limiter, log)
	tb.editInterval = time.Hour

	return tb
}

func textUpdate(text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   10,
		From: &models.User{ID: userID, Username: "gopher"},
		Chat: models.Chat{ID: userID, Type: "private"},
		Text: text,
	}}
}

func TestURLMessageIsSummarized(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), textUpdate("look https://go.dev/blog/go1.26 please"))

	assert.Equal(t, []string{"https://go.dev/blog/go1.26"}, tb.extractor.inputs)

	require.Len(t, tb.tg.sent, 1)
	assert.Equal(t, 10, tb.tg.sent[0].ReplyParameters.MessageID)
	assert.Contains(t, tb.tg.sent[0].Text, "Reading https://go.dev/blog/go1.26")

	require.Len(t, tb.tg.edits, 2)
	assert.Equal(t, "**Go** "+previewCursor, tb.tg.edits[0].Text)
	assert.Empty(t, tb.tg.edits[0].ParseMode)

	final := tb.tg.lastEdit(t)
	assert.Equal(t, models.ParseModeMarkdown, final.ParseMode)
	assert.Contains(t, final.Text, "*About Go*")
	assert.Contains(t, final.Text, "*Go* is fast\\.")
	assert.Contains(t, final.Text, "[Source](https://go.dev/blog/go1.26)")
	require.NotNil(t, final.ReplyMarkup)

	entries, err := tb.history.List(context.Background(), userID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "**Go** is fast.", entries[0].Result.Summary)

	sess, ok := tb.sessions.get(userID, final.MessageID)
	require.True(t, ok)
	assert.Equal(t, entries[0].ID, sess.historyID)
}

func TestExtractionErrorIsShown(t *testing.T) {
	tb := newTestBot(t)
	tb.extractor.err = apperr.New("fetch", apperr.CodeNotFound, "page not found (404)")

	tb.handleUpdate(context.Background(), textUpdate("https://example.com/missing"))

	final := tb.tg.lastEdit(t)
	assert.Equal(t, "❌ Failed: page not found (404)", final.Text)
	assert.Empty(t, final.ParseMode)

	entries, err := tb.history.List(context.Background(), userID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestShortTextAsksForLink(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), textUpdate("hello there"))

	assert.Empty(t, tb.extractor.inputs)
	require.Len(t, tb.tg.sent, 1)
	assert.Equal(t, notEnoughText, tb.tg.sent[0].Text)
}

func TestUserNotAllowed(t *testing.T) {
	tb := newTestBot(t, 1, 2)

	tb.handleUpdate(context.Background(), textUpdate("https://go.dev"))

	assert.Empty(t, tb.extractor.inputs)
	assert.Empty(t, tb.tg.sent)
}

func TestReplyContinuesConversation(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.handleUpdate(ctx, textUpdate("https://go.dev"))
	summaryID := tb.tg.lastEdit(t).MessageID

	reply := textUpdate("Why is it fast?")
	reply.Message.ID = 11
	reply.Message.ReplyToMessage = &models.Message{ID: summaryID}

	tb.handleUpdate(ctx, reply)

	require.NotNil(t, tb.summarizer.chatResult)
	assert.Equal(t, "Go is a fast language.", tb.summarizer.chatResult.Extraction.Content)
	assert.Equal(t, []domain.Message{{Role: domain.RoleUser, Content: "Why is it fast?"}}, tb.summarizer.chatMessages)

	answer := tb.tg.lastEdit(t)
	assert.Equal(t, "Because of its compiler\\.", answer.Text)

	sess, ok := tb.sessions.get(userID, answer.MessageID)
	require.True(t, ok)
	assert.Len(t, sess.messages, 2)
	assert.Equal(t, domain.RoleAssistant, sess.messages[1].Role)
}

func TestHistoryCommand(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.handleUpdate(ctx, textUpdate("/history"))
	require.Len(t, tb.tg.sent, 1)
	assert.Contains(t, tb.tg.sent[0].Text, "No summaries yet")

	tb.handleUpdate(ctx, textUpdate("https://go.dev"))
	tb.handleUpdate(ctx, textUpdate("/history"))

	last := tb.tg.sent[len(tb.tg.sent)-1]
	assert.Contains(t, last.Text, "1\\. [About Go](https://go.dev)")
}

func TestStartCommand(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), textUpdate("/start"))

	require.Len(t, tb.tg.sent, 1)
	assert.Equal(t, welcomeText, tb.tg.sent[0].Text)
	assert.Equal(t, models.ParseModeMarkdown, tb.tg.sent[0].ParseMode)
}

func TestSpeechCallback(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.handleUpdate(ctx, textUpdate("https://go.dev"))

	entries, err := tb.history.List(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	tb.handleUpdate(ctx, &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: userID},
		Data: speechCallbackPrefix + "1",
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{
			ID:   101,
			Chat: models.Chat{ID: userID},
		}},
	}})

	assert.Equal(t, "**Go** is fast.", tb.summarizer.rewritten)
	require.Len(t, tb.tg.answers, 1)
	assert.Empty(t, tb.tg.answers[0].Text)

	last := tb.tg.sent[len(tb.tg.sent)-1]
	assert.Equal(t, "Go is fast.", last.Text)
	assert.Equal(t, 101, last.ReplyParameters.MessageID)
}

func TestSpeechCallbackForeignEntry(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: userID},
		Data: speechCallbackPrefix + "999",
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{
			ID:   101,
			Chat: models.Chat{ID: userID},
		}},
	}})

	require.Len(t, tb.tg.answers, 1)
	assert.Equal(t, "❌ Failed.", tb.tg.answers[0].Text)
	assert.Empty(t, tb.summarizer.rewritten)
}

func TestFindInputs(t *testing.T) {
	long := strings.Repeat("word ", minTextWords)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single url", "see https://go.dev/doc.", []string{"https://go.dev/doc"}},
		{"dedup and cap", "https://a.dev https://a.dev https://b.dev http://c.dev https://d.dev",
			[]string{"https://a.dev", "https://b.dev", "http://c.dev"}},
		{"non http scheme", "mailto:me@example.com ftp://files.example.com/x", nil},
		{"short text", "just a few words", nil},
		{"long text", long, []string{long}},
		{"local path", "/etc/passwd", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findInputs(tt.text))
		})
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"input", apperr.New("pipeline", apperr.CodeInvalidURL, "bad url"), "🤔 I can't read that: bad url"},
		{"config", apperr.New("slack", apperr.CodeNoToken, "SLACK_TOKEN is not set"), "⚙️ Configuration problem: SLACK_TOKEN is not set"},
		{"transient", apperr.New("anthropic", apperr.CodeRateLimit, "rate limited"), "⏳ rate limited. Try again in a minute."},
		{"plain", errors.New("boom"), "❌ Failed: something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorText(tt.err))
		})
	}
}

func TestFormatSummaryFallsBackToPlainText(t *testing.T) {
	result := &domain.TldrResult{
		Summary:    strings.Repeat("a.", telegramMessageMaxLength),
		Model:      "m",
		Extraction: domain.NewExtractionResult("x", "direct input"),
	}

	msg := formatSummary(result)

	assert.False(t, msg.markdown)
	assert.Len(t, []rune(msg.text), telegramMessageMaxLength)
	assert.True(t, strings.HasPrefix(msg.text, "Summary\n\n"))
}

func TestSessionsEvictLeastRecentlyUsed(t *testing.T) {
	s := newSessions(2, time.Hour)

	s.put(1, 1, session{historyID: 1})
	s.put(1, 2, session{historyID: 2})
	s.put(1, 2, session{historyID: 3})
	assert.Len(t, s.entries, 2)

	_, ok := s.get(1, 1)
	require.True(t, ok)

	s.put(1, 3, session{historyID: 4})
	assert.Len(t, s.entries, 2)

	_, ok = s.get(1, 2)
	assert.False(t, ok)

	sess, ok := s.get(1, 3)
	require.True(t, ok)
	assert.Equal(t, int64(4), sess.historyID)
}

func TestSessionsExpire(t *testing.T) {
	s := newSessions(10, time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.put(5, 1, session{historyID: 1})

	now = now.Add(2 * time.Minute)
	_, ok := s.get(5, 1)
	assert.False(t, ok)
	assert.Empty(t, s.entries)

	s.put(5, 2, session{historyID: 2})
	now = now.Add(30 * time.Second)
	_, ok = s.get(5, 2)
	assert.True(t, ok)
}
