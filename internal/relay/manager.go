package relay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/handle"
	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/pkg/message"
)

// ManagerMetrics extends Metrics with channel lifecycle counts.
type ManagerMetrics interface {
	Metrics
	ChannelOpened()
	ChannelClosed()
}

// ManagerConfig holds the collaborators of a Manager.
type ManagerConfig struct {
	Client  protocol.Client
	Bus     Subscriber
	Handles *handle.Registry
	Timers  Repeater
	Logger  *slog.Logger
	Metrics ManagerMetrics

	// AutoCreate opens a channel for inbound messages from unknown peers.
	AutoCreate bool

	// TypingInterval overrides protocol.LocalTypingRepeatInterval.
	TypingInterval time.Duration
}

// Manager owns one relay per open channel and routes protocol events from
// the bus to them.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	registry *channel.Registry

	mu        sync.Mutex
	relays    map[string]*Relay
	observers []channel.Observer
	subs      []bus.SubscriptionID
	started   bool
}

// NewManager creates a manager. Call Start to begin routing events.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handles == nil {
		cfg.Handles = handle.NewRegistry()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopManagerMetrics{}
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		registry: channel.NewRegistry(),
		relays:   make(map[string]*Relay),
	}
}

// Registry returns the channel registry.
func (m *Manager) Registry() *channel.Registry { return m.registry }

// Handles returns the handle registry.
func (m *Manager) Handles() *handle.Registry { return m.cfg.Handles }

// AddObserver attaches obs to every open channel and to channels opened
// later.
func (m *Manager) AddObserver(obs channel.Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
	for _, r := range m.relays {
		r.Channel().AddObserver(obs)
	}
}

// Start subscribes to protocol events.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.subs = []bus.SubscriptionID{
		m.cfg.Bus.Subscribe(protocol.TopicMessageReceived, m.handleMessage),
		m.cfg.Bus.Subscribe(protocol.TopicTypingChanged, m.handleTyping),
		m.cfg.Bus.Subscribe(protocol.TopicDeliveryStatus, m.handleDelivery),
		m.cfg.Bus.Subscribe(protocol.TopicChatChanged, m.handleChatChanged),
	}
}

// Stop unsubscribes from the bus and closes every channel.
func (m *Manager) Stop() {
	m.mu.Lock()
	for _, id := range m.subs {
		m.cfg.Bus.Unsubscribe(id)
	}
	m.subs = nil
	m.started = false
	targets := make([]string, 0, len(m.relays))
	for target := range m.relays {
		targets = append(targets, target)
	}
	m.mu.Unlock()

	for _, target := range targets {
		_ = m.CloseChannel(target)
	}
}

// EnsureChannel returns the relay for target, opening the channel if
// needed. Chat identifiers open group channels; user identifiers open
// direct channels. The relay is built without holding the manager lock;
// when two callers race, the first one registered wins and the other
// relay is discarded.
func (m *Manager) EnsureChannel(ctx context.Context, target string) (*Relay, error) {
	m.mu.Lock()
	if r, ok := m.relays[target]; ok {
		m.mu.Unlock()
		return r, nil
	}
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	var (
		kind       channel.Kind
		handleType message.HandleType
		chatID     int64
		isGroup    bool
	)
	if id, ok := protocol.IdentifierToChatID(target); ok {
		kind, handleType, chatID, isGroup = channel.NewGroup(), message.HandleTypeRoom, id, true
	} else if _, ok := protocol.IdentifierToUserID(target); ok {
		kind, handleType = channel.Direct{}, message.HandleTypeContact
	} else {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}

	selfID := m.cfg.Client.SelfIdentifier()
	identity := channel.Identity{
		TargetID:         target,
		TargetHandle:     m.cfg.Handles.Ensure(handleType, target),
		TargetHandleType: handleType,
		SelfID:           selfID,
		SelfHandle:       m.cfg.Handles.Ensure(message.HandleTypeContact, selfID),
	}

	obj := channel.NewObject(identity, kind, m.logger)
	for _, obs := range observers {
		obj.AddObserver(obs)
	}

	r, err := New(ctx, Config{
		Channel:        obj,
		Client:         m.cfg.Client,
		Bus:            m.cfg.Bus,
		Timers:         m.cfg.Timers,
		Logger:         m.logger,
		Metrics:        m.cfg.Metrics,
		TypingInterval: m.cfg.TypingInterval,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.relays[target]; ok {
		m.mu.Unlock()
		r.Close()
		return existing, nil
	}
	if err := m.registry.Register(obj); err != nil {
		m.mu.Unlock()
		r.Close()
		return nil, err
	}
	// Observers added while the relay was being built.
	for _, obs := range m.observers[len(observers):] {
		obj.AddObserver(obs)
	}
	m.relays[target] = r
	m.mu.Unlock()
	m.cfg.Metrics.ChannelOpened()

	if isGroup {
		if info, ok := m.cfg.Client.ChatInfo(ctx, chatID); ok {
			r.OnGroupRosterChanged(ctx, chatID, m.members(info.Participants))
		}
	}

	m.logger.Info("channel opened", "target", target, "handle", uint32(identity.TargetHandle))
	return r, nil
}

// Channel returns the relay for target.
func (m *Manager) Channel(target string) (*Relay, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relays[target]
	return r, ok
}

// Channels returns the open targets, sorted.
func (m *Manager) Channels() []string {
	return m.registry.Channels()
}

// CloseChannel closes the channel for target.
func (m *Manager) CloseChannel(target string) error {
	m.mu.Lock()
	r, ok := m.relays[target]
	delete(m.relays, target)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", channel.ErrNoChannel, target)
	}

	r.Close()
	m.registry.Remove(target)
	r.Channel().Close()
	m.cfg.Metrics.ChannelClosed()
	m.logger.Info("channel closed", "target", target)
	return nil
}

func (m *Manager) snapshot() []*Relay {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Relay, 0, len(m.relays))
	for _, r := range m.relays {
		out = append(out, r)
	}
	return out
}

func (m *Manager) members(identifiers []string) []channel.Member {
	out := make([]channel.Member, 0, len(identifiers))
	for _, id := range identifiers {
		out = append(out, channel.Member{
			Handle:     m.cfg.Handles.Ensure(message.HandleTypeContact, id),
			Identifier: id,
		})
	}
	return out
}

func (m *Manager) handleMessage(e bus.Event) {
	ev, ok := e.(protocol.MessageReceivedEvent)
	if !ok {
		return
	}
	msg := ev.Message

	r, ok := m.Channel(msg.Peer)
	if !ok {
		if !m.cfg.AutoCreate {
			m.logger.Debug("no channel for message", "peer", msg.Peer, "message_id", msg.ID)
			return
		}
		var err error
		r, err = m.EnsureChannel(context.Background(), msg.Peer)
		if err != nil {
			m.logger.Warn("open channel for message failed", "peer", msg.Peer, "error", err)
			return
		}
	}

	sender := msg.Sender
	if msg.Outgoing() || sender == "" {
		sender = m.cfg.Client.SelfIdentifier()
	}
	r.OnIncomingMessage(msg, m.cfg.Handles.Ensure(message.HandleTypeContact, sender))
}

func (m *Manager) handleTyping(e bus.Event) {
	ev, ok := e.(protocol.TypingChangedEvent)
	if !ok {
		return
	}
	for _, r := range m.snapshot() {
		r.OnTypingChanged(ev.Peer, ev.Composing)
	}
}

func (m *Manager) handleDelivery(e bus.Event) {
	ev, ok := e.(protocol.DeliveryStatusEvent)
	if !ok {
		return
	}
	for _, r := range m.snapshot() {
		r.OnDeliveryStatusChanged(ev.Peer, ev.MessageID, ev.Status)
	}
}

func (m *Manager) handleChatChanged(e bus.Event) {
	ev, ok := e.(protocol.ChatChangedEvent)
	if !ok {
		return
	}
	members := m.members(ev.Participants)
	for _, r := range m.snapshot() {
		r.OnGroupRosterChanged(context.Background(), ev.ChatID, members)
	}
}

type nopManagerMetrics struct{ nopMetrics }

func (nopManagerMetrics) ChannelOpened() {}
func (nopManagerMetrics) ChannelClosed() {}
