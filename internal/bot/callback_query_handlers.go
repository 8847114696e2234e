package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	message := callback.Message.Message
	if message == nil {
		return b.answerCallback(ctx, callback, "")
	}

	data := strings.TrimSpace(callback.Data)

	if idStr, ok := strings.CutPrefix(data, speechCallbackPrefix); ok {
		return b.withSpinner(ctx, message.Chat.ID, func() error {
			return b.handleSpeechQuery(ctx, callback, message, idStr)
		})
	}

	return b.answerCallback(ctx, callback, "")
}

func (b *Bot) handleSpeechQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	message *models.Message,
	idStr string,
) error {
	historyID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("parse history id: %w", err))
	}

	entry, err := b.history.Get(ctx, callback.From.ID, historyID)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("get history entry: %w", err))
	}

	var errs []error
	if err = b.answerCallback(ctx, callback, ""); err != nil {
		errs = append(errs, err)
	}

	text, err := b.summarizer.RewriteForSpeech(ctx, entry.Result.Summary)
	if err != nil {
		_, sendErr := b.send(ctx, message.Chat.ID, outgoing{text: errorText(err), replyTo: message.ID})
		return errors.Join(append(errs, fmt.Errorf("rewrite for speech: %w", err), sendErr)...)
	}

	_, err = b.send(ctx, message.Chat.ID, outgoing{
		text:    truncateRunes(text, telegramMessageMaxLength),
		replyTo: message.ID,
	})
	if err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(ctx context.Context, callback *models.CallbackQuery, err error) error {
	if sendErr := b.answerCallback(ctx, callback, "❌ Failed."); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}
