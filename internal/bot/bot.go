// Package bot is the Telegram surface: it summarizes links and long texts sent
// to it, keeps the results in history and answers follow-up replies.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tldr/internal/domain"
	"tldr/internal/history"
	"tldr/internal/ratelimiter"
)

const (
	updateProcessingTimeout = 3 * time.Minute
	streamEditInterval      = 2 * time.Second
)

type Extractor interface {
	Extract(ctx context.Context, raw string) (*domain.ExtractionResult, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, extraction domain.ExtractionResult, onChunk func(string)) (*domain.TldrResult, error)
	RewriteForSpeech(ctx context.Context, markdown string) (string, error)
	Chat(ctx context.Context, result *domain.TldrResult, messages []domain.Message, onChunk func(string)) (string, error)
}

type History interface {
	Add(ctx context.Context, userID int64, result *domain.TldrResult) (int64, error)
	List(ctx context.Context, userID int64, limit int) ([]history.Entry, error)
	Get(ctx context.Context, userID, id int64) (*history.Entry, error)
}

// telegram is the part of *tgbot.Bot the handlers use.
type telegram interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

type Deps struct {
	Extractor    Extractor
	Summarizer   Summarizer
	History      History
	AllowedUsers []int64
}

type Bot struct {
	client       *tgbot.Bot
	api          telegram
	rateLimiter  *ratelimiter.RateLimiter
	extractor    Extractor
	summarizer   Summarizer
	history      History
	allowedUsers []int64
	sessions     *sessions
	editInterval time.Duration
	log          *slog.Logger
}

func New(token string, deps Deps, log *slog.Logger) (*Bot, error) {
	b := newBot(nil, deps, ratelimiter.New(ratelimiter.DefaultRates(), log), log)

	client, err := tgbot.New(strings.TrimSpace(token),
		tgbot.WithDefaultHandler(func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
			b.handleUpdate(ctx, update)
		}))
	if err != nil {
		b.rateLimiter.Stop()
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	b.client = client
	b.api = client

	return b, nil
}

func newBot(api telegram, deps Deps, rateLimiter *ratelimiter.RateLimiter, log *slog.Logger) *Bot {
	return &Bot{
		api:          api,
		rateLimiter:  rateLimiter,
		extractor:    deps.Extractor,
		summarizer:   deps.Summarizer,
		history:      deps.History,
		allowedUsers: deps.AllowedUsers,
		sessions:     newSessions(maxSessions, sessionTTL),
		editInterval: streamEditInterval,
		log:          log,
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is started",
		"allowedUsers", len(b.allowedUsers))

	b.client.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		message := update.Message
		userID := message.From.ID

		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", message.Chat.ID,
				"username", message.From.Username,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", userID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

// userAllowed reports whether userID may use the bot. An empty list allows
// everyone.
func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}
