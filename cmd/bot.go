package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tldr/internal/bot"
	"tldr/internal/history"
	"tldr/internal/scheduler"
)

func NewBotCmd(h *appHolder) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Run the Telegram bot until interrupted. It needs TELEGRAM_TOKEN and
answers only ALLOWED_USERS when that list is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, h.app)
		},
	}
}

func runBot(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	log := a.log
	start := time.Now()

	if a.cfg.Telegram.Token == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}

	sum, err := a.summarizer()
	if err != nil {
		return err
	}

	store, err := history.Open(ctx, a.cfg.HistoryPath, log)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close history",
				"error", err,
				"historyPath", a.cfg.HistoryPath)
		}
	}()
	log.InfoContext(ctx, "History is opened",
		"historyPath", a.cfg.HistoryPath)

	botInst, err := bot.New(a.cfg.Telegram.Token, bot.Deps{
		Extractor:    a.extractor,
		Summarizer:   sum,
		History:      store,
		AllowedUsers: a.cfg.Telegram.AllowedUsers,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize bot: %w", err)
	}
	defer botInst.Stop()

	retention := time.Duration(a.cfg.HistoryRetentionDays) * 24 * time.Hour
	sched := scheduler.New(ctx, store, retention, log)

	if err = sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", scheduler.DailyPruneSpec,
		"retentionDays", a.cfg.HistoryRetentionDays,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	botInst.Start(ctx)

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}
