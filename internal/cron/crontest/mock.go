// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/tgrelay/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls int
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ManualTimers is a stand-in for Scheduler.Every whose timers only fire
// when the test calls Fire.
type ManualTimers struct {
	mu     sync.Mutex
	next   int
	active map[int]manualTimer
	armed  int
}

type manualTimer struct {
	interval time.Duration
	fn       func()
}

// Every records a timer. The returned function removes it.
func (m *ManualTimers) Every(interval time.Duration, fn func()) (stop func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		m.active = make(map[int]manualTimer)
	}
	m.next++
	id := m.next
	m.active[id] = manualTimer{interval: interval, fn: fn}
	m.armed++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.active, id)
	}
}

// Fire runs every active timer once and returns how many ran.
func (m *ManualTimers) Fire() int {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.active))
	for _, t := range m.active {
		fns = append(fns, t.fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Active returns the number of timers not yet stopped.
func (m *ManualTimers) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Armed returns how many timers were ever created.
func (m *ManualTimers) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Intervals returns the intervals of the active timers.
func (m *ManualTimers) Intervals() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, t.interval)
	}
	return out
}
