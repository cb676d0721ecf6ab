// Package protocol describes the messaging protocol as seen by the relay:
// message metadata, delivery and typing states, group chats, and the client
// contract a concrete protocol implementation satisfies.
package protocol

import (
	"strconv"
	"strings"
	"time"
)

// LocalTypingRepeatInterval is how often a typing indicator must be re-sent
// for the peer to keep showing it.
const LocalTypingRepeatInterval = 5 * time.Second

// Identifier prefixes for users and chats.
const (
	userPrefix = "user"
	chatPrefix = "chat"
)

// MessageType is the kind of content a protocol message carries.
type MessageType int

// Message types.
const (
	MessageTypeText MessageType = iota
	MessageTypePhoto
	MessageTypeAudio
	MessageTypeVoice
	MessageTypeVideo
	MessageTypeDocument
	MessageTypeSticker
	MessageTypeGeo
	MessageTypeUnsupported
)

var messageTypeNames = [...]string{
	MessageTypeText:        "text",
	MessageTypePhoto:       "photo",
	MessageTypeAudio:       "audio",
	MessageTypeVoice:       "voice",
	MessageTypeVideo:       "video",
	MessageTypeDocument:    "document",
	MessageTypeSticker:     "sticker",
	MessageTypeGeo:         "geo",
	MessageTypeUnsupported: "unsupported",
}

// String implements fmt.Stringer.
func (t MessageType) String() string {
	if t < 0 || int(t) >= len(messageTypeNames) {
		return "unsupported"
	}
	return messageTypeNames[t]
}

// MessageFlags is a bit set of message attributes.
type MessageFlags uint32

// Message flags.
const (
	FlagOut MessageFlags = 1 << iota
	FlagForwarded
	FlagReply
)

// Has reports whether all bits in f2 are set.
func (f MessageFlags) Has(f2 MessageFlags) bool {
	return f&f2 == f2
}

// DeliveryStatus is the upstream state of an outgoing message.
type DeliveryStatus int

// Delivery statuses.
const (
	DeliveryStatusUnknown DeliveryStatus = iota
	DeliveryStatusSent
	DeliveryStatusRead
	DeliveryStatusFailed
)

// TypingAction is the local typing state sent upstream.
type TypingAction int

// Typing actions.
const (
	TypingNone TypingAction = iota
	TypingTyping
)

// Message is the metadata of a message as reported by the protocol client.
type Message struct {
	ID        uint64
	Peer      string // conversation identifier: user<id> or chat<id>
	Sender    string // author identifier, user<id>
	Text      string
	Timestamp time.Time
	Flags     MessageFlags
	Type      MessageType
}

// IsText reports whether the message carries text only.
func (m Message) IsText() bool {
	return m.Type == MessageTypeText
}

// Outgoing reports whether the message was sent by the local account.
func (m Message) Outgoing() bool {
	return m.Flags.Has(FlagOut)
}

// GroupChat is the information available about a group conversation.
type GroupChat struct {
	ID           int64
	Title        string
	Created      time.Time
	Participants []string
}

// UserIdentifier formats a user id as an identifier.
func UserIdentifier(id int64) string {
	return userPrefix + strconv.FormatInt(id, 10)
}

// ChatIdentifier formats a chat id as an identifier.
func ChatIdentifier(id int64) string {
	return chatPrefix + strconv.FormatInt(id, 10)
}

// IsChatIdentifier reports whether identifier names a group chat.
func IsChatIdentifier(identifier string) bool {
	_, ok := IdentifierToChatID(identifier)
	return ok
}

// IdentifierToChatID extracts the chat id from a chat identifier.
func IdentifierToChatID(identifier string) (int64, bool) {
	return parseIdentifier(identifier, chatPrefix)
}

// IdentifierToUserID extracts the user id from a user identifier.
func IdentifierToUserID(identifier string) (int64, bool) {
	return parseIdentifier(identifier, userPrefix)
}

func parseIdentifier(identifier, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(identifier, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
