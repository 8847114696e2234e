package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	sendSpinnerInterval = 4 * time.Second
	previewCursor       = " ▌"
)

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	_, err := b.api.SendChatAction(ctx, &tgbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil && ctx.Err() == nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err)
	}
}

func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Go(func() {
		b.sendTyping(ctx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.sendTyping(ctx, chatID)
			}
		}
	})

	err := fn()

	cancel()
	wg.Wait()

	return err
}

// streamEditor mirrors a streaming answer into one message, editing it at
// most once per interval. Previews are plain text.
type streamEditor struct {
	bot       *Bot
	ctx       context.Context
	chatID    int64
	messageID int
	interval  time.Duration
	text      strings.Builder
	lastEdit  time.Time
}

func (b *Bot) newStreamEditor(ctx context.Context, chatID int64, messageID int) *streamEditor {
	return &streamEditor{
		bot:       b,
		ctx:       ctx,
		chatID:    chatID,
		messageID: messageID,
		interval:  b.editInterval,
	}
}

func (s *streamEditor) onChunk(chunk string) {
	s.text.WriteString(chunk)

	if time.Since(s.lastEdit) < s.interval {
		return
	}
	s.lastEdit = time.Now()

	preview := truncateRunes(s.text.String(), telegramMessageMaxLength-len([]rune(previewCursor)))
	if err := s.bot.edit(s.ctx, s.chatID, s.messageID, outgoing{text: preview + previewCursor}); err != nil {
		s.bot.log.WarnContext(s.ctx, "Failed to edit progress message",
			"error", err,
			"chatID", s.chatID,
			"messageID", s.messageID)
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
