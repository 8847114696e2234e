package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tldr/internal/config"
	"tldr/internal/history"
)

func NewHistoryCmd(h *appHolder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := h.app
			ctx := cmd.Context()

			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			return a.withHistory(ctx, func(store historyStore) error {
				entries, err := store.List(ctx, cliUserID, limit)
				if err != nil {
					return fmt.Errorf("list history: %w", err)
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}

				return printEntries(cmd, entries)
			})
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of entries")

	cmd.AddCommand(newHistoryShowCmd(h), newHistoryPruneCmd(h))

	return cmd
}

func newHistoryShowCmd(h *appHolder) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id|last]",
		Short: "Print a saved summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := h.app
			ctx := cmd.Context()

			ref := "last"
			if len(args) > 0 {
				ref = args[0]
			}

			return a.withHistory(ctx, func(store historyStore) error {
				entry, err := a.entry(ctx, store, ref)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), entry.Result.Summary)
				return err
			})
		},
	}
}

func newHistoryPruneCmd(h *appHolder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete summaries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := h.app
			ctx := cmd.Context()

			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				days = a.cfg.HistoryRetentionDays
			}
			cutoff := time.Now().UTC().AddDate(0, 0, -days)

			return a.withHistory(ctx, func(store historyStore) error {
				deleted, err := store.Prune(ctx, cutoff)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d summaries older than %d days.\n", deleted, days)
				return err
			})
		},
	}

	cmd.Flags().Int("days", 0, fmt.Sprintf("Keep this many days (default %d or $TLDR_HISTORY_RETENTION_DAYS)", config.DefaultRetentionDays))

	return cmd
}

func printEntries(cmd *cobra.Command, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No summaries yet.")
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tMODEL\tTITLE")

	for _, entry := range entries {
		ext := entry.Result.Extraction
		title := ext.Title
		if title == "" {
			title = ext.Source
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			entry.ID,
			entry.CreatedAt.Local().Format("2006-01-02 15:04"),
			entry.Result.Model,
			title)
	}

	return w.Flush()
}
