// Package message defines the structured content exchanged between a text
// channel and its clients: content parts, the message header, and the
// enumerations carried in it (message type, delivery status, chat state).
package message

import "strconv"

// Handle is a numeric reference to a contact or room, allocated by the
// connection. Zero is never a valid handle.
type Handle uint32

// HandleType tells what a Handle refers to.
type HandleType uint32

// Handle types.
const (
	HandleTypeNone    HandleType = 0
	HandleTypeContact HandleType = 1
	HandleTypeRoom    HandleType = 2
)

// String implements fmt.Stringer.
func (t HandleType) String() string {
	switch t {
	case HandleTypeContact:
		return "contact"
	case HandleTypeRoom:
		return "room"
	default:
		return "none"
	}
}

// MessageType is the kind of message carried in a Header.
type MessageType uint32

// Message types.
const (
	TypeNormal         MessageType = 0
	TypeAction         MessageType = 1
	TypeNotice         MessageType = 2
	TypeAutoReply      MessageType = 3
	TypeDeliveryReport MessageType = 4
)

// DeliveryStatus is the state reported by a delivery report.
type DeliveryStatus uint32

// Delivery statuses.
const (
	DeliveryUnknown           DeliveryStatus = 0
	DeliveryDelivered         DeliveryStatus = 1
	DeliveryTemporarilyFailed DeliveryStatus = 2
	DeliveryPermanentlyFailed DeliveryStatus = 3
	DeliveryAccepted          DeliveryStatus = 4
	DeliveryRead              DeliveryStatus = 5
	DeliveryDeleted           DeliveryStatus = 6
)

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryDelivered:
		return "delivered"
	case DeliveryTemporarilyFailed:
		return "temporarily_failed"
	case DeliveryPermanentlyFailed:
		return "permanently_failed"
	case DeliveryAccepted:
		return "accepted"
	case DeliveryRead:
		return "read"
	case DeliveryDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChatState is a participant's composing state.
type ChatState uint32

// Chat states.
const (
	ChatStateGone      ChatState = 0
	ChatStateInactive  ChatState = 1
	ChatStateActive    ChatState = 2
	ChatStatePaused    ChatState = 3
	ChatStateComposing ChatState = 4
)

// String implements fmt.Stringer.
func (s ChatState) String() string {
	switch s {
	case ChatStateGone:
		return "gone"
	case ChatStateInactive:
		return "inactive"
	case ChatStateActive:
		return "active"
	case ChatStatePaused:
		return "paused"
	case ChatStateComposing:
		return "composing"
	default:
		return "chat_state(" + strconv.FormatUint(uint64(s), 10) + ")"
	}
}

// ParseChatState maps a state name back to its ChatState.
func ParseChatState(name string) (ChatState, bool) {
	for s := ChatStateGone; s <= ChatStateComposing; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}
