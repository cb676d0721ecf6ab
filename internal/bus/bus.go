// Package bus is the in-process notification bus that carries protocol events
// to the relays. Events are queued by Publish and delivered by a single
// dispatch goroutine (Run), so handlers never run concurrently with each
// other.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultBufferSize = 256
	publishTimeout    = 10 * time.Second
)

// Sentinel errors.
var (
	ErrClosed = errors.New("bus: closed")
	ErrFull   = errors.New("bus: queue full")
)

// Event is anything published on the bus. The topic selects subscribers.
type Event interface {
	Topic() string
}

// Handler receives events for a subscribed topic.
type Handler func(Event)

// SubscriptionID identifies a subscription for Unsubscribe. IDs are never
// reused.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is a topic based publish/subscribe queue.
type Bus struct {
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}

	mu     sync.RWMutex
	next   SubscriptionID
	subs   map[string][]subscription
	topics map[SubscriptionID]string
	closed bool
}

// New creates a bus with the given queue size. A size <= 0 selects the
// default.
func New(logger *slog.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		queue:  make(chan Event, bufferSize),
		done:   make(chan struct{}),
		subs:   make(map[string][]subscription),
		topics: make(map[SubscriptionID]string),
	}
}

// Subscribe registers handler for topic.
func (b *Bus) Subscribe(topic string, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.topics[id] = topic
	return id
}

// Unsubscribe removes a subscription. It reports whether id was active.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.topics[id]
	if !ok {
		return false
	}
	delete(b.topics, id)

	list := b.subs[topic]
	for i, s := range list {
		if s.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.subs, topic)
	} else {
		b.subs[topic] = list
	}
	return true
}

// Count returns the number of subscriptions on topic.
func (b *Bus) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish queues an event for the dispatch goroutine. It waits for room in
// the queue for a bounded time.
func (b *Bus) Publish(e Event) error {
	if b.isClosed() {
		return ErrClosed
	}

	select {
	case b.queue <- e:
		return nil
	default:
	}

	b.logger.Warn("bus queue full, waiting", "topic", e.Topic())
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case b.queue <- e:
		return nil
	case <-b.done:
		return ErrClosed
	case <-timer.C:
		b.logger.Error("event dropped: bus full", "topic", e.Topic())
		return fmt.Errorf("%w: %s", ErrFull, e.Topic())
	}
}

// Emit delivers an event synchronously on the calling goroutine.
func (b *Bus) Emit(e Event) {
	b.dispatch(e)
}

// Run delivers queued events until ctx is cancelled or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case e := <-b.queue:
			b.dispatch(e)
		}
	}
}

// Close stops accepting events and makes Run return. Queued events that
// were not yet delivered are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// dispatch calls the handlers registered when the event is picked up.
// Handlers may subscribe or unsubscribe while running.
func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[e.Topic()]...)
	b.mu.RUnlock()

	for _, s := range list {
		b.call(s, e)
	}
}

func (b *Bus) call(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				"topic", e.Topic(),
				"subscription", uint64(s.id),
				"panic", r,
			)
		}
	}()
	s.handler(e)
}
