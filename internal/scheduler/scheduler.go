// Package scheduler runs periodic housekeeping for the bot, currently the
// daily removal of old history entries.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DailyPruneSpec        = "0 3 * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	pruneTimeout          = 5 * time.Minute
)

type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	history   Pruner
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// New returns a scheduler that keeps retention worth of history. A zero
// retention disables pruning.
func New(ctx context.Context, history Pruner, retention time.Duration, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		history:   history,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.retention > 0 {
		if _, err := s.cron.AddFunc(DailyPruneSpec, s.pruneHistory); err != nil {
			return err
		}
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) pruneHistory() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	cutoff := s.now().UTC().Add(-s.retention)

	deleted, err := s.history.Prune(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune history",
			"error", err,
			"cutoff", cutoff)
		return
	}

	s.log.InfoContext(ctx, "History is pruned",
		"cutoff", cutoff,
		"deleted", deleted)
}
