package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/cron"
)

// Service names of the collaborators a store module uses.
const (
	serviceScheduler = "cron.scheduler"
	serviceManager   = "relay.manager"
)

// Retention configures pruning. It is embedded in backend configs.
type Retention struct {
	// Retention is how long records are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is a 5-field cron expression. Defaults to hourly.
	PruneSchedule string `yaml:"prune_schedule"`
}

// Validate checks the retention settings. prefix names the backend in
// error messages.
func (r Retention) Validate(prefix string) error {
	if r.Retention < 0 {
		return fmt.Errorf("%s: retention must be non-negative, got %s", prefix, r.Retention)
	}
	return nil
}

// Observable is satisfied by the relay manager.
type Observable interface {
	AddObserver(obs channel.Observer)
}

// Register publishes log under ServiceName and schedules its pruning when
// a retention is set.
func Register(ctx *core.AppContext, log Log, r Retention) error {
	ctx.RegisterService(ServiceName, log)
	if r.Retention <= 0 {
		return nil
	}

	scheduler, err := core.ServiceAs[*cron.Scheduler](ctx, serviceScheduler)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return scheduler.RegisterJob(&cron.PruneJob{
		Store:        log,
		Retention:    r.Retention,
		ScheduleExpr: r.PruneSchedule,
		Logger:       ctx.Logger,
	})
}

// Attach starts a Recorder for log and adds it to the relay manager's
// observers.
func Attach(ctx *core.AppContext, log Log, logger *slog.Logger) (*Recorder, error) {
	manager, err := core.ServiceAs[Observable](ctx, serviceManager)
	if err != nil {
		return nil, fmt.Errorf("store: %w (is relay.manager loaded?)", err)
	}
	rec := NewRecorder(log, logger)
	manager.AddObserver(rec)
	return rec, nil
}
