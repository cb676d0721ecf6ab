package protocol

import "context"

// Client is the protocol connection a relay talks to. Implementations must be
// safe for concurrent use.
type Client interface {
	// SendMessage sends text to peer and returns the upstream message id.
	SendMessage(ctx context.Context, peer, text string) (uint64, error)

	// SetMessageRead marks a received message as read.
	SetMessageRead(ctx context.Context, peer string, id uint64) error

	// SetTyping sets the local typing state for peer.
	SetTyping(ctx context.Context, peer string, action TypingAction) error

	// RequestMediaData starts downloading the payload of a non-text message.
	// The payload arrives later as MediaChunkEvents.
	RequestMediaData(ctx context.Context, peer string, id uint64) error

	// ChatInfo returns what is known about a group chat.
	ChatInfo(ctx context.Context, chatID int64) (GroupChat, bool)

	// SelfIdentifier returns the identifier of the local account.
	SelfIdentifier() string
}
