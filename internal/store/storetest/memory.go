// Package storetest provides an in-memory store.Log for tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/tgrelay/internal/store"
)

// Memory is a store.Log kept in a slice.
type Memory struct {
	mu      sync.Mutex
	records []store.Record
	nextID  int64

	// AppendErr, when set, is returned by Append.
	AppendErr error

	appended chan struct{}
}

var _ store.Log = (*Memory)(nil)

// NewMemory returns an empty log.
func NewMemory() *Memory {
	return &Memory{appended: make(chan struct{}, 64)}
}

// Append implements store.Log.
func (m *Memory) Append(_ context.Context, r store.Record) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	if m.AppendErr != nil {
		m.mu.Unlock()
		return 0, m.AppendErr
	}
	m.nextID++
	r.ID = m.nextID
	m.records = append(m.records, r)
	m.mu.Unlock()

	select {
	case m.appended <- struct{}{}:
	default:
	}
	return r.ID, nil
}

// List implements store.Log.
func (m *Memory) List(_ context.Context, channel string, limit int) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for _, r := range m.records {
		if r.Channel == channel {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Prune implements store.Log.
func (m *Memory) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

// Records returns a copy of everything appended.
func (m *Memory) Records() []store.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Record, len(m.records))
	copy(out, m.records)
	return out
}

// WaitAppended blocks until n appends have happened since the last call
// or the timeout expires.
func (m *Memory) WaitAppended(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for range n {
		select {
		case <-m.appended:
		case <-deadline:
			return false
		}
	}
	return true
}
