// Package channeltest provides test doubles for the channel package.
package channeltest

import (
	"sync"

	"github.com/flemzord/tgrelay/internal/channel"
)

// Recorder is a channel.Observer that keeps every notification it sees.
// Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	all []channel.Notification
}

var _ channel.Observer = (*Recorder)(nil)

// Notify implements channel.Observer.
func (r *Recorder) Notify(n channel.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns every recorded notification.
func (r *Recorder) All() []channel.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]channel.Notification(nil), r.all...)
}

// OfKind returns the recorded notifications of kind k.
func (r *Recorder) OfKind(k channel.NotificationKind) []channel.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []channel.Notification
	for _, n := range r.all {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Received returns the message_received notifications.
func (r *Recorder) Received() []channel.Notification {
	return r.OfKind(channel.NotifyMessageReceived)
}

// Sent returns the message_sent notifications.
func (r *Recorder) Sent() []channel.Notification {
	return r.OfKind(channel.NotifyMessageSent)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = nil
}
