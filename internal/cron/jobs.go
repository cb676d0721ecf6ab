package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner deletes message log records older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PruneJob removes message log records older than Retention.
type PruneJob struct {
	Store        Pruner
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"

	// Now is used instead of time.Now when set.
	Now func() time.Time
}

// Compile-time interface check.
var _ Job = (*PruneJob)(nil)

// Name implements Job.
func (j *PruneJob) Name() string { return "message_log_prune" }

// Schedule implements Job.
func (j *PruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run deletes records older than Retention. A zero retention keeps
// everything.
func (j *PruneJob) Run(ctx context.Context) error {
	if j.Retention <= 0 {
		return nil
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	pruned, err := j.Store.Prune(ctx, now().Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("cron: prune message log: %w", err)
	}
	if pruned > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned message log", "count", pruned)
	}
	return nil
}
