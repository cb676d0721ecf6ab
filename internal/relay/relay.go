// Package relay connects channel objects to the protocol client. A Relay
// translates protocol events for one conversation into channel
// notifications, and channel requests into protocol calls. Non-text
// messages are held back until their media payload has been reassembled
// from chunks.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/pkg/message"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/flemzord/tgrelay/internal/relay")

// Subscriber is the part of the notification bus a relay uses.
type Subscriber interface {
	Subscribe(topic string, handler bus.Handler) bus.SubscriptionID
	Unsubscribe(id bus.SubscriptionID) bool
}

// Repeater runs fn every interval until stop is called.
type Repeater interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// Metrics receives relay activity. *metrics.Relay implements it.
type Metrics interface {
	MessageRelayed(direction string)
	PendingMedia(delta int)
	DeliveryReport(status message.DeliveryStatus)
	NotificationDropped(reason string)
	TypingTimer(delta int)
	ChunkBytes(n int)
}

// Config holds the collaborators of a Relay.
type Config struct {
	Channel *channel.Object
	Client  protocol.Client
	Bus     Subscriber
	Timers  Repeater
	Logger  *slog.Logger
	Metrics Metrics

	// TypingInterval overrides protocol.LocalTypingRepeatInterval.
	TypingInterval time.Duration

	// Now is used instead of time.Now when set.
	Now func() time.Time
}

type pendingMessage struct {
	msg    protocol.Message
	sender message.Handle
}

type pendingPayload struct {
	data     []byte
	mimeType string
}

// PendingEntry describes a media message waiting for its payload.
type PendingEntry struct {
	MessageID uint64               `json:"message_id"`
	Type      protocol.MessageType `json:"-"`
	TypeName  string               `json:"type"`
	Received  int                  `json:"received_bytes"`
	MimeType  string               `json:"mime_type,omitempty"`
}

// Relay is the message relay of one channel.
type Relay struct {
	identity channel.Identity
	obj      *channel.Object
	client   protocol.Client
	bus      Subscriber
	timers   Repeater
	logger   *slog.Logger
	metrics  Metrics
	interval time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// stateMu orders chat state requests; mu guards everything below it.
	stateMu sync.Mutex

	mu         sync.Mutex
	messages   map[uint64]pendingMessage
	payloads   map[uint64]*pendingPayload
	chunkSub   bus.SubscriptionID
	subscribed bool
	stopTyping func()
	closed     bool
}

// New creates a relay for cfg.Channel and attaches it to the channel's
// request callbacks. For group channels the room title and creation time
// are fetched from the client.
func New(ctx context.Context, cfg Config) (*Relay, error) {
	if cfg.Channel == nil {
		return nil, errors.New("relay: channel is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("relay: client is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("relay: bus is required")
	}
	if cfg.Timers == nil {
		return nil, errors.New("relay: timers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = protocol.LocalTypingRepeatInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	identity := cfg.Channel.Identity()
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Relay{
		identity: identity,
		obj:      cfg.Channel,
		client:   cfg.Client,
		bus:      cfg.Bus,
		timers:   cfg.Timers,
		logger:   cfg.Logger.With("target", identity.TargetID),
		metrics:  cfg.Metrics,
		interval: cfg.TypingInterval,
		now:      cfg.Now,
		ctx:      rctx,
		cancel:   cancel,
		messages: make(map[uint64]pendingMessage),
		payloads: make(map[uint64]*pendingPayload),
	}

	if _, ok := cfg.Channel.Group(); ok {
		chatID, ok := protocol.IdentifierToChatID(identity.TargetID)
		if !ok {
			cancel()
			return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, identity.TargetID)
		}
		if info, found := r.client.ChatInfo(ctx, chatID); found {
			_ = r.obj.SetTitle(info.Title, unixOrZero(info.Created))
		}
	}

	r.obj.SetSendMessageCallback(r.SendOutgoing)
	r.obj.SetMessageAcknowledgedCallback(r.AcknowledgeRead)
	r.obj.SetChatStateCallback(r.OnLocalChatStateRequested)
	return r, nil
}

// Identity returns the channel identity the relay serves.
func (r *Relay) Identity() channel.Identity { return r.identity }

// Channel returns the channel object the relay publishes to.
func (r *Relay) Channel() *channel.Object { return r.obj }

// Pending returns the media messages waiting for their payload, ordered by
// message id.
func (r *Relay) Pending() []PendingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PendingEntry, 0, len(r.messages))
	for id, pm := range r.messages {
		e := PendingEntry{MessageID: id, Type: pm.msg.Type, TypeName: pm.msg.Type.String()}
		if p, ok := r.payloads[id]; ok {
			e.Received = len(p.data)
			e.MimeType = p.mimeType
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b PendingEntry) int {
		switch {
		case a.MessageID < b.MessageID:
			return -1
		case a.MessageID > b.MessageID:
			return 1
		}
		return 0
	})
	return out
}

// Close disarms the typing timer, drops the chunk subscription and detaches
// from the channel. Pending messages are discarded.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.disarmTypingLocked()
	r.unsubscribeChunksLocked()
	if n := len(r.messages); n > 0 {
		r.metrics.PendingMedia(-n)
	}
	r.messages = make(map[uint64]pendingMessage)
	r.payloads = make(map[uint64]*pendingPayload)
	r.mu.Unlock()

	r.cancel()
	r.obj.Detach()
	r.logger.Debug("relay closed")
}

func (r *Relay) unsubscribeChunksLocked() {
	if !r.subscribed {
		return
	}
	r.bus.Unsubscribe(r.chunkSub)
	r.subscribed = false
	r.chunkSub = 0
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

type nopMetrics struct{}

func (nopMetrics) MessageRelayed(string)                 {}
func (nopMetrics) PendingMedia(int)                      {}
func (nopMetrics) DeliveryReport(message.DeliveryStatus) {}
func (nopMetrics) NotificationDropped(string)            {}
func (nopMetrics) TypingTimer(int)                       {}
func (nopMetrics) ChunkBytes(int)                        {}
