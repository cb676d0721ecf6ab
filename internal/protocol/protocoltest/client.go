// Package protocoltest provides test doubles for the protocol package.
package protocoltest

import (
	"context"
	"sync"

	"github.com/flemzord/tgrelay/internal/protocol"
)

// SentMessage records a SendMessage call.
type SentMessage struct {
	Peer string
	Text string
}

// ReadMark records a SetMessageRead call.
type ReadMark struct {
	Peer string
	ID   uint64
}

// TypingCall records a SetTyping call.
type TypingCall struct {
	Peer   string
	Action protocol.TypingAction
}

// MediaRequest records a RequestMediaData call.
type MediaRequest struct {
	Peer string
	ID   uint64
}

// FakeClient is a recording protocol.Client. Optional Func fields override
// the default behavior. Safe for concurrent use.
type FakeClient struct {
	Self string

	SendFunc     func(ctx context.Context, peer, text string) (uint64, error)
	ChatInfoFunc func(ctx context.Context, chatID int64) (protocol.GroupChat, bool)
	MediaFunc    func(ctx context.Context, peer string, id uint64) error

	mu     sync.Mutex
	nextID uint64
	sent   []SentMessage
	reads  []ReadMark
	typing []TypingCall
	media  []MediaRequest
	infos  int
}

var _ protocol.Client = (*FakeClient)(nil)

// SendMessage records the call. Without SendFunc it assigns sequential ids
// starting at 1.
func (c *FakeClient) SendMessage(ctx context.Context, peer, text string) (uint64, error) {
	c.mu.Lock()
	c.sent = append(c.sent, SentMessage{Peer: peer, Text: text})
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	if c.SendFunc != nil {
		return c.SendFunc(ctx, peer, text)
	}
	return id, nil
}

// SetMessageRead records the call.
func (c *FakeClient) SetMessageRead(_ context.Context, peer string, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, ReadMark{Peer: peer, ID: id})
	return nil
}

// SetTyping records the call.
func (c *FakeClient) SetTyping(_ context.Context, peer string, action protocol.TypingAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = append(c.typing, TypingCall{Peer: peer, Action: action})
	return nil
}

// RequestMediaData records the call and delegates to MediaFunc when set.
func (c *FakeClient) RequestMediaData(ctx context.Context, peer string, id uint64) error {
	c.mu.Lock()
	c.media = append(c.media, MediaRequest{Peer: peer, ID: id})
	c.mu.Unlock()

	if c.MediaFunc != nil {
		return c.MediaFunc(ctx, peer, id)
	}
	return nil
}

// ChatInfo delegates to ChatInfoFunc, reporting unknown chats otherwise.
func (c *FakeClient) ChatInfo(ctx context.Context, chatID int64) (protocol.GroupChat, bool) {
	c.mu.Lock()
	c.infos++
	c.mu.Unlock()

	if c.ChatInfoFunc != nil {
		return c.ChatInfoFunc(ctx, chatID)
	}
	return protocol.GroupChat{}, false
}

// SelfIdentifier returns Self.
func (c *FakeClient) SelfIdentifier() string { return c.Self }

// Sent returns a copy of the recorded sends.
func (c *FakeClient) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

// Reads returns a copy of the recorded read marks.
func (c *FakeClient) Reads() []ReadMark {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ReadMark(nil), c.reads...)
}

// Typing returns a copy of the recorded typing calls.
func (c *FakeClient) Typing() []TypingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TypingCall(nil), c.typing...)
}

// MediaRequests returns a copy of the recorded media requests.
func (c *FakeClient) MediaRequests() []MediaRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MediaRequest(nil), c.media...)
}

// ChatInfoCalls returns how many times ChatInfo was called.
func (c *FakeClient) ChatInfoCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.infos
}
