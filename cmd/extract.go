package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func NewExtractCmd(h *appHolder) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [url|file|text]",
		Short: "Print the extracted content as JSON without summarizing it",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := h.app
			ctx := cmd.Context()

			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			extraction, err := a.extractor.Extract(ctx, input)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			defer a.removeTempImage(ctx, extraction)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(withoutImage(*extraction))
		},
	}
}
