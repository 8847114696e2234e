package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tldr/internal/domain"
	"tldr/internal/summarizer"
)

func NewChatCmd(h *appHolder) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [id|last] [question]",
		Short: "Ask follow-up questions about a saved summary",
		Long: `Ask follow-up questions about a saved summary.

With a question the answer is printed once. Without one, every line read from
stdin is a new question in the same conversation.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := h.app
			ctx := cmd.Context()

			ref := "last"
			if len(args) > 0 {
				ref = args[0]
			}
			question := strings.TrimSpace(strings.Join(args[min(1, len(args)):], " "))

			sum, err := a.summarizer()
			if err != nil {
				return err
			}

			return a.withHistory(ctx, func(store historyStore) error {
				entry, err := a.entry(ctx, store, ref)
				if err != nil {
					return err
				}

				c := &conversation{sum: sum, result: &entry.Result, out: cmd.OutOrStdout()}

				if question != "" {
					return c.ask(ctx, question)
				}

				return c.loop(ctx, cmd.InOrStdin(), cmd.ErrOrStderr())
			})
		},
	}
}

type conversation struct {
	sum      *summarizer.Summarizer
	result   *domain.TldrResult
	messages []domain.Message
	out      io.Writer
}

func (c *conversation) ask(ctx context.Context, question string) error {
	messages := append(c.messages[:len(c.messages):len(c.messages)], domain.Message{
		Role:    domain.RoleUser,
		Content: question,
	})

	answer, err := c.sum.Chat(ctx, c.result, messages, func(chunk string) {
		_, _ = io.WriteString(c.out, chunk)
	})
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if !strings.HasSuffix(answer, "\n") {
		fmt.Fprintln(c.out)
	}

	c.messages = append(messages, domain.Message{Role: domain.RoleAssistant, Content: answer})

	return nil
}

func (c *conversation) loop(ctx context.Context, in io.Reader, prompt io.Writer) error {
	title := c.result.Extraction.Title
	if title == "" {
		title = c.result.Extraction.Source
	}
	fmt.Fprintf(prompt, "Chatting about %s. End with Ctrl-D.\n", title)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(prompt, "> ")

		if !scanner.Scan() {
			fmt.Fprintln(prompt)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		if err := c.ask(ctx, question); err != nil {
			return err
		}
	}
}
