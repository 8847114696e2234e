package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	telegramMessageMaxLength = 4096
	speechCallbackPrefix     = "speech_"
)

// outgoing is one message body. Markdown bodies are already MarkdownV2.
type outgoing struct {
	text     string
	markdown bool
	replyTo  int
	keyboard [][]models.InlineKeyboardButton
}

func (o outgoing) parseMode() models.ParseMode {
	if o.markdown {
		// See https://core.telegram.org/bots/api#markdownv2-style.
		return models.ParseModeMarkdown
	}
	return ""
}

func (o outgoing) replyMarkup() models.ReplyMarkup {
	if len(o.keyboard) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: o.keyboard}
}

func (b *Bot) normalizeText(chatID int64, text string) string {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.Warn("Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}
	return normalizedText
}

func (b *Bot) send(ctx context.Context, chatID int64, msg outgoing) (*models.Message, error) {
	params := &tgbot.SendMessageParams{
		ChatID:             chatID,
		Text:               b.normalizeText(chatID, msg.text),
		ParseMode:          msg.parseMode(),
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
		ReplyMarkup:        msg.replyMarkup(),
	}
	if msg.replyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: msg.replyTo}
	}

	var sent *models.Message
	err := b.rateLimiter.Do(ctx, chatID, func(ctx context.Context) error {
		var err error
		sent, err = b.api.SendMessage(ctx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	return sent, nil
}

func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, msg outgoing) error {
	params := &tgbot.EditMessageTextParams{
		ChatID:             chatID,
		MessageID:          messageID,
		Text:               b.normalizeText(chatID, msg.text),
		ParseMode:          msg.parseMode(),
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
		ReplyMarkup:        msg.replyMarkup(),
	}

	err := b.rateLimiter.Do(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.EditMessageText(ctx, params)
		return err
	})
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	return nil
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery, text string) error {
	_, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

func summaryKeyboard(historyID int64) [][]models.InlineKeyboardButton {
	if historyID == 0 {
		return nil
	}

	return [][]models.InlineKeyboardButton{
		{{Text: "🔊 Plain text", CallbackData: speechCallbackPrefix + strconv.FormatInt(historyID, 10)}},
	}
}
