package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/tgrelay/internal/channel"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// Recorder is a channel.Observer appending notifications to a Log. Writes
// happen on a background goroutine so observers never wait on the database.
type Recorder struct {
	log    Log
	logger *slog.Logger
	now    func() time.Time

	queue chan Record
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

var _ channel.Observer = (*Recorder)(nil)

// NewRecorder starts a recorder writing to log. Call Close to flush.
func NewRecorder(log Log, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		log:    log,
		logger: logger,
		now:    time.Now,
		queue:  make(chan Record, defaultQueueSize),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Notify implements channel.Observer. Records are dropped when the queue
// is full or the recorder is closed.
func (r *Recorder) Notify(n channel.Notification) {
	rec, ok := FromNotification(n, r.now())
	if !ok {
		return
	}
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("store: queue full, dropping record", "channel", rec.Channel, "kind", rec.Kind)
	}
}

// Close stops accepting records and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()
	if _, err := r.log.Append(ctx, rec); err != nil {
		r.logger.Error("store: append failed", "channel", rec.Channel, "error", err)
	}
}
