package bot

import (
	"context"
	"errors"
	"fmt"
)

const historyListLimit = 10

const welcomeText = `🤖 *Welcome to tldr\!*

Send me something to read and I'll reply with a summary:

– Web articles, PDFs and images by URL
– YouTube videos \(from their transcript\)
– GitHub files, arXiv papers, Slack threads and Notion pages
– Or just paste a long text

Reply to a summary to ask follow\-up questions about it\.
Use /history to see your recent summaries\.`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	_, err := b.send(ctx, chatID, outgoing{text: welcomeText, markdown: true})
	return err
}

func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64, userID int64) error {
	entries, err := b.history.List(ctx, userID, historyListLimit)
	if err != nil {
		errs := []error{fmt.Errorf("list history: %w", err)}

		if _, sendErr := b.send(ctx, chatID, outgoing{text: "❌ Failed\\.", markdown: true}); sendErr != nil {
			errs = append(errs, sendErr)
		}

		return errors.Join(errs...)
	}

	_, err = b.send(ctx, chatID, outgoing{text: formatHistory(entries), markdown: true})
	return err
}
