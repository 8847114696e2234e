package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-telegram/bot/models"
	"mvdan.cc/xurls/v2"

	"tldr/internal/apperr"
	"tldr/internal/classify"
	"tldr/internal/domain"
)

const (
	maxURLsPerMessage = 3
	minTextWords      = 40
)

const notEnoughText = "🔗 Send me a link, or paste at least a few paragraphs of text to summarize\\."

//nolint:gochecknoglobals // Compiled once, read-only.
var urlRe = xurls.Strict()

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	return b.withSpinner(ctx, message.Chat.ID, func() error {
		text := strings.TrimSpace(message.Text)

		switch {
		case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
			return b.handleStartCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/history"):
			return b.handleHistoryCommand(ctx, message.Chat.ID, message.From.ID)
		}

		if reply := message.ReplyToMessage; reply != nil {
			if sess, ok := b.sessions.get(message.Chat.ID, reply.ID); ok {
				return b.handleFollowUp(ctx, message, sess)
			}
		}

		return b.handleRandomText(ctx, message, text)
	})
}

func (b *Bot) handleRandomText(ctx context.Context, message *models.Message, text string) error {
	inputs := findInputs(text)
	if len(inputs) == 0 {
		_, err := b.send(ctx, message.Chat.ID, outgoing{text: notEnoughText, markdown: true, replyTo: message.ID})
		return err
	}

	var errs []error
	for _, input := range inputs {
		if err := b.summarizeInput(ctx, message, input); err != nil {
			errs = append(errs, fmt.Errorf("summarize %q: %w", preview(input), err))
		}
	}

	return errors.Join(errs...)
}

// findInputs picks what to summarize from a message: its http(s) links, or
// the whole text when it has no links and is long enough. Anything that
// would be read as a local path is ignored.
func findInputs(text string) []string {
	var urls []string
	seen := make(map[string]struct{})

	for _, found := range urlRe.FindAllString(text, -1) {
		lower := strings.ToLower(found)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			continue
		}
		if _, ok := seen[found]; ok {
			continue
		}
		seen[found] = struct{}{}

		urls = append(urls, found)
		if len(urls) == maxURLsPerMessage {
			break
		}
	}

	if len(urls) > 0 {
		return urls
	}

	if len(strings.Fields(text)) < minTextWords {
		return nil
	}
	if classify.Classify(text).Type != domain.InputText {
		return nil
	}

	return []string{text}
}

func (b *Bot) summarizeInput(ctx context.Context, message *models.Message, input string) error {
	chatID := message.Chat.ID

	progress, err := b.send(ctx, chatID, outgoing{text: "⏳ Reading " + preview(input), replyTo: message.ID})
	if err != nil {
		return err
	}

	extraction, err := b.extractor.Extract(ctx, input)
	if err != nil {
		return b.fail(ctx, chatID, progress.ID, fmt.Errorf("extract: %w", err))
	}
	defer b.removeImage(ctx, extraction)

	stream := b.newStreamEditor(ctx, chatID, progress.ID)

	result, err := b.summarizer.Summarize(ctx, *extraction, stream.onChunk)
	if err != nil {
		return b.fail(ctx, chatID, progress.ID, fmt.Errorf("summarize: %w", err))
	}

	historyID, err := b.history.Add(ctx, message.From.ID, result)
	if err != nil {
		b.log.ErrorContext(ctx, "Failed to save summary",
			"error", err,
			"userID", message.From.ID,
			"source", result.Extraction.Source)
		historyID = 0
	}

	reply := formatSummary(result)
	reply.keyboard = summaryKeyboard(historyID)

	if err = b.edit(ctx, chatID, progress.ID, reply); err != nil {
		return err
	}

	if historyID != 0 {
		b.sessions.put(chatID, progress.ID, session{historyID: historyID})
	}

	return nil
}

func (b *Bot) handleFollowUp(ctx context.Context, message *models.Message, sess session) error {
	chatID := message.Chat.ID

	entry, err := b.history.Get(ctx, message.From.ID, sess.historyID)
	if err != nil {
		_, sendErr := b.send(ctx, chatID, outgoing{text: "🗑 That summary is no longer available\\.", markdown: true, replyTo: message.ID})
		return errors.Join(fmt.Errorf("get history entry: %w", err), sendErr)
	}

	progress, err := b.send(ctx, chatID, outgoing{text: "💭 Thinking", replyTo: message.ID})
	if err != nil {
		return err
	}

	messages := append(sess.messages[:len(sess.messages):len(sess.messages)], domain.Message{
		Role:    domain.RoleUser,
		Content: strings.TrimSpace(message.Text),
	})

	stream := b.newStreamEditor(ctx, chatID, progress.ID)

	answer, err := b.summarizer.Chat(ctx, &entry.Result, messages, stream.onChunk)
	if err != nil {
		return b.fail(ctx, chatID, progress.ID, fmt.Errorf("chat: %w", err))
	}

	if err = b.edit(ctx, chatID, progress.ID, formatAnswer(answer)); err != nil {
		return err
	}

	b.sessions.put(chatID, progress.ID, session{
		historyID: sess.historyID,
		messages:  append(messages, domain.Message{Role: domain.RoleAssistant, Content: answer}),
	})

	return nil
}

// fail replaces the progress message with an error text and returns cause.
func (b *Bot) fail(ctx context.Context, chatID int64, messageID int, cause error) error {
	if apperr.IsAborted(cause) {
		return cause
	}

	if err := b.edit(ctx, chatID, messageID, outgoing{text: errorText(cause)}); err != nil {
		return errors.Join(cause, err)
	}

	return cause
}

// removeImage deletes the temporary file an image URL was downloaded to.
func (b *Bot) removeImage(ctx context.Context, extraction *domain.ExtractionResult) {
	if extraction.Image == nil || extraction.Image.FilePath == "" || !isLink(extraction.Source) {
		return
	}

	if err := os.Remove(extraction.Image.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.log.WarnContext(ctx, "Failed to remove temporary image",
			"error", err,
			"path", extraction.Image.FilePath)
	}
}

func preview(input string) string {
	return truncateRunes(strings.Join(strings.Fields(input), " "), 80)
}
