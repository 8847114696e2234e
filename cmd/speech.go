package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewSpeechCmd(h *appHolder) *cobra.Command {
	return &cobra.Command{
		Use:   "speech [id|last]",
		Short: "Rewrite a saved summary as plain text for reading aloud",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := h.app
			ctx := cmd.Context()

			ref := "last"
			if len(args) > 0 {
				ref = args[0]
			}

			sum, err := a.summarizer()
			if err != nil {
				return err
			}

			return a.withHistory(ctx, func(store historyStore) error {
				entry, err := a.entry(ctx, store, ref)
				if err != nil {
					return err
				}

				text, err := sum.RewriteForSpeech(ctx, entry.Result.Summary)
				if err != nil {
					return fmt.Errorf("rewrite for speech: %w", err)
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			})
		},
	}
}
