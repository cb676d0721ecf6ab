package channel

import "github.com/flemzord/tgrelay/pkg/message"

// NotificationKind tells which field of a Notification is meaningful.
type NotificationKind int

// Notification kinds.
const (
	NotifyMessageSent NotificationKind = iota + 1
	NotifyMessageReceived
	NotifyChatState
	NotifyMembers
	NotifyRoom
	NotifyClosed
)

// String implements fmt.Stringer.
func (k NotificationKind) String() string {
	switch k {
	case NotifyMessageSent:
		return "message_sent"
	case NotifyMessageReceived:
		return "message_received"
	case NotifyChatState:
		return "chat_state"
	case NotifyMembers:
		return "members"
	case NotifyRoom:
		return "room"
	case NotifyClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Notification is something a channel tells its observers.
type Notification struct {
	Kind    NotificationKind
	Channel string

	// NotifyMessageSent, NotifyMessageReceived.
	Message *message.Message
	Token   string

	// NotifyChatState.
	Contact   message.Handle
	ChatState message.ChatState

	// NotifyMembers.
	Members []Member

	// NotifyRoom.
	Room RoomInfo
}

// Observer receives channel notifications. Notify is called synchronously
// by the publisher and must not block for long.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(n Notification)

// Notify implements Observer.
func (f ObserverFunc) Notify(n Notification) { f(n) }
