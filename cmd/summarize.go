package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

func NewSummarizeCmd(h *appHolder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [url|file|text]",
		Short: "Summarize a URL, a local file or text (the default command)",
		Args:  cobra.ArbitraryArgs,
		RunE:  makeSummarizeRunner(h),
	}

	addSummarizeFlags(cmd)

	return cmd
}

func addSummarizeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-input-chars", 0, "Truncate content to this many characters before summarizing")
	cmd.Flags().Bool("no-history", false, "Do not save the summary to history")
}

type summaryOutput struct {
	ID         int64                   `json:"id,omitempty"`
	Summary    string                  `json:"summary"`
	Provider   string                  `json:"provider"`
	Model      string                  `json:"model"`
	Duration   string                  `json:"duration"`
	Extraction domain.ExtractionResult `json:"extraction"`
}

func makeSummarizeRunner(h *appHolder) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a := h.app
		ctx := cmd.Context()

		asJSON, _ := cmd.Flags().GetBool("json")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		input, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		sum, err := a.summarizer()
		if err != nil {
			return err
		}

		extraction, err := a.extractor.Extract(ctx, input)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		defer a.removeTempImage(ctx, extraction)

		out := cmd.OutOrStdout()
		onChunk := func(chunk string) {
			if !asJSON {
				_, _ = io.WriteString(out, chunk)
			}
		}

		result, err := sum.Summarize(ctx, *extraction, onChunk)
		if err != nil {
			return fmt.Errorf("summarize: %w", err)
		}

		var id int64
		if !noHistory {
			id = a.save(cmd, result)
		}

		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summaryOutput{
				ID:         id,
				Summary:    result.Summary,
				Provider:   result.Provider,
				Model:      result.Model,
				Duration:   result.Duration.Round(time.Millisecond).String(),
				Extraction: withoutImage(result.Extraction),
			})
		}

		if !strings.HasSuffix(result.Summary, "\n") {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), summaryFooter(result, id))

		return nil
	}
}

// save stores result and returns its id. Failures are logged, the summary
// was already printed.
func (a *app) save(cmd *cobra.Command, result *domain.TldrResult) int64 {
	var id int64

	err := a.withHistory(cmd.Context(), func(store historyStore) error {
		var err error
		id, err = store.Add(cmd.Context(), cliUserID, result)
		return err
	})
	if err != nil {
		a.log.WarnContext(cmd.Context(), "Failed to save summary",
			"error", err,
			"source", result.Extraction.Source)
	}

	return id
}

func summaryFooter(result *domain.TldrResult, id int64) string {
	parts := []string{result.Provider + "/" + result.Model}
	if n := result.Extraction.WordCount; n > 0 {
		parts = append(parts, fmt.Sprintf("%d words", n))
	}
	if result.Extraction.Partial {
		parts = append(parts, "truncated")
	}
	parts = append(parts, result.Duration.Round(100*time.Millisecond).String())
	if id != 0 {
		parts = append(parts, fmt.Sprintf("history #%d", id))
	}

	return "· " + strings.Join(parts, " · ")
}

// readInput joins the arguments or, without any, reads stdin unless it is a
// terminal.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		info, err := f.Stat()
		if err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", apperr.New("cli", apperr.CodeInvalidURL, "nothing to summarize: pass a URL, a file or text, or pipe it on stdin")
		}
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", apperr.New("cli", apperr.CodeInvalidURL, "nothing to summarize: stdin is empty")
	}

	return string(data), nil
}

// withoutImage drops the base64 payload from JSON output.
func withoutImage(ext domain.ExtractionResult) domain.ExtractionResult {
	if ext.Image != nil {
		img := *ext.Image
		img.Base64 = ""
		ext.Image = &img
	}
	return ext
}
