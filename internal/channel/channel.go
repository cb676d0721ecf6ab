// Package channel models the framework side of a conversation: a text
// channel object that clients attach to, its identity, its kind (direct or
// group), and the notifications it publishes to observers.
package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flemzord/tgrelay/pkg/message"
)

// Identity names the two ends of a channel. It never changes after the
// channel is created.
type Identity struct {
	TargetID         string
	TargetHandle     message.Handle
	TargetHandleType message.HandleType
	SelfID           string
	SelfHandle       message.Handle
}

// Callbacks invoked when a client issues a request on the channel.
type (
	SendMessageFunc         func(ctx context.Context, parts []message.Part) (string, error)
	MessageAcknowledgedFunc func(ctx context.Context, token string)
	ChatStateFunc           func(ctx context.Context, state message.ChatState)
)

// Object is a text channel. Requests from clients are forwarded to the
// registered callbacks; publishers fan notifications out to observers.
type Object struct {
	identity Identity
	kind     Kind
	logger   *slog.Logger

	mu        sync.RWMutex
	onSend    SendMessageFunc
	onAck     MessageAcknowledgedFunc
	onState   ChatStateFunc
	observers map[int]Observer
	nextObs   int
	closed    bool
}

// NewObject creates a channel object. A nil kind means Direct.
func NewObject(identity Identity, kind Kind, logger *slog.Logger) *Object {
	if kind == nil {
		kind = Direct{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Object{
		identity:  identity,
		kind:      kind,
		logger:    logger.With("channel", identity.TargetID),
		observers: make(map[int]Observer),
	}
}

// Identity returns the channel's identity.
func (o *Object) Identity() Identity { return o.identity }

// Kind returns the channel's kind.
func (o *Object) Kind() Kind { return o.kind }

// Group returns the group extension when the channel is a group chat.
func (o *Object) Group() (*Group, bool) {
	g, ok := o.kind.(*Group)
	return g, ok
}

// SetSendMessageCallback registers the handler for SendMessage.
func (o *Object) SetSendMessageCallback(fn SendMessageFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSend = fn
}

// SetMessageAcknowledgedCallback registers the handler for AcknowledgeMessage.
func (o *Object) SetMessageAcknowledgedCallback(fn MessageAcknowledgedFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onAck = fn
}

// SetChatStateCallback registers the handler for SetChatState.
func (o *Object) SetChatStateCallback(fn ChatStateFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onState = fn
}

// Detach drops every registered callback.
func (o *Object) Detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSend = nil
	o.onAck = nil
	o.onState = nil
}

// SendMessage asks the channel to send parts and returns the message token.
func (o *Object) SendMessage(ctx context.Context, parts []message.Part) (string, error) {
	o.mu.RLock()
	fn, closed := o.onSend, o.closed
	o.mu.RUnlock()

	if closed {
		return "", ErrClosed
	}
	if fn == nil {
		return "", ErrNotAttached
	}
	return fn(ctx, parts)
}

// AcknowledgeMessage marks received messages as read.
func (o *Object) AcknowledgeMessage(ctx context.Context, tokens ...string) error {
	o.mu.RLock()
	fn, closed := o.onAck, o.closed
	o.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if fn == nil {
		return ErrNotAttached
	}
	for _, token := range tokens {
		fn(ctx, token)
	}
	return nil
}

// SetChatState sets the local chat state.
func (o *Object) SetChatState(ctx context.Context, state message.ChatState) error {
	o.mu.RLock()
	fn, closed := o.onState, o.closed
	o.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if fn == nil {
		return ErrNotAttached
	}
	fn(ctx, state)
	return nil
}

// MessageSent publishes a message sent by the local account.
func (o *Object) MessageSent(msg message.Message, token string) {
	o.publish(Notification{Kind: NotifyMessageSent, Message: &msg, Token: token})
}

// MessageReceived publishes an inbound message or delivery report.
func (o *Object) MessageReceived(msg message.Message) {
	o.publish(Notification{Kind: NotifyMessageReceived, Message: &msg, Token: msg.Header.Token})
}

// ChatStateChanged publishes a contact's chat state.
func (o *Object) ChatStateChanged(contact message.Handle, state message.ChatState) {
	o.publish(Notification{Kind: NotifyChatState, Contact: contact, ChatState: state})
}

// SetMembers replaces the group roster and publishes it.
func (o *Object) SetMembers(members []Member) error {
	g, ok := o.Group()
	if !ok {
		return ErrNotGroup
	}
	g.Roster.Set(members)
	o.publish(Notification{Kind: NotifyMembers, Members: g.Roster.Members()})
	return nil
}

// SetTitle updates the room title and creation time and publishes the room.
func (o *Object) SetTitle(title string, created int64) error {
	g, ok := o.Group()
	if !ok {
		return ErrNotGroup
	}
	g.Room.setTitle(title, created)
	o.publish(Notification{Kind: NotifyRoom, Room: g.Room.Snapshot()})
	return nil
}

// SetConfigurationRetrieved flags the room configuration as known.
func (o *Object) SetConfigurationRetrieved(retrieved bool) error {
	g, ok := o.Group()
	if !ok {
		return ErrNotGroup
	}
	g.Room.setRetrieved(retrieved)
	o.publish(Notification{Kind: NotifyRoom, Room: g.Room.Snapshot()})
	return nil
}

// AddObserver registers an observer and returns a function removing it.
func (o *Object) AddObserver(obs Observer) (remove func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextObs++
	id := o.nextObs
	o.observers[id] = obs
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.observers, id)
	}
}

// Close publishes a closed notification, detaches callbacks and drops every
// observer. Further requests fail with ErrClosed.
func (o *Object) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.onSend, o.onAck, o.onState = nil, nil, nil
	o.mu.Unlock()

	o.publish(Notification{Kind: NotifyClosed})

	o.mu.Lock()
	o.observers = make(map[int]Observer)
	o.mu.Unlock()
}

func (o *Object) publish(n Notification) {
	n.Channel = o.identity.TargetID

	o.mu.RLock()
	list := make([]Observer, 0, len(o.observers))
	for _, obs := range o.observers {
		list = append(list, obs)
	}
	o.mu.RUnlock()

	o.logger.Debug("channel notification", "kind", n.Kind.String())
	for _, obs := range list {
		obs.Notify(n)
	}
}
