package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named jobs on cron expressions and ad-hoc repeating
// timers. A job whose previous run is still in flight skips its tick.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	parser  cron.Parser
	jobs    []*registeredJob
	names   map[string]struct{}
	timers  int
	started bool
	logger  *slog.Logger
	cancel  context.CancelFunc
}

type registeredJob struct {
	job      Job
	schedule cron.Schedule
	running  sync.Mutex
}

// NewScheduler creates a scheduler. Jobs must be registered before Start;
// timers may be added at any time.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		parser: parser,
		names:  make(map[string]struct{}),
		logger: logger,
	}
}

// RegisterJob parses the job's schedule and queues it for Start. It fails
// on a duplicate name, an invalid expression, or a started scheduler.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if s.started {
		return fmt.Errorf("cron: scheduler already started, cannot add job %q", name)
	}
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	sched, err := s.parser.Parse(j.Schedule())
	if err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}

	s.names[name] = struct{}{}
	s.jobs = append(s.jobs, &registeredJob{job: j, schedule: sched})
	return nil
}

// Every runs fn every interval until the returned stop function is called.
// Intervals are rounded to whole seconds with a one second minimum. Timers
// fire only while the scheduler is started.
func (s *Scheduler) Every(interval time.Duration, fn func()) (stop func()) {
	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))

	s.mu.Lock()
	s.timers++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.cron.Remove(id)
			s.mu.Lock()
			s.timers--
			s.mu.Unlock()
		})
	}
}

// ActiveTimers returns the number of timers that have not been stopped.
func (s *Scheduler) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers
}

// Start hands the registered jobs to the cron runner and starts it.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, rj := range s.jobs {
		s.cron.Schedule(rj.schedule, cron.FuncJob(func() { s.runJob(ctx, rj) }))
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, rj *registeredJob) {
	name := rj.job.Name()
	if !rj.running.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", name)
		return
	}
	defer rj.running.Unlock()

	s.logger.Debug("cron: job started", "job", name)
	if err := rj.job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("cron: job completed", "job", name)
}

// Stop shuts down the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if !s.started {
		return nil
	}
	s.started = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
