package gateway

import (
	"encoding/json"
	"time"

	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/pkg/message"
)

// MessageType identifies the kind of websocket envelope.
type MessageType string

// Requests sent by clients.
const (
	MsgSubscribe     MessageType = "subscribe"
	MsgEnsureChannel MessageType = "ensure_channel"
	MsgSendMessage   MessageType = "send_message"
	MsgAcknowledge   MessageType = "acknowledge"
	MsgSetChatState  MessageType = "set_chat_state"
	MsgCloseChannel  MessageType = "close_channel"
)

// Events sent by the gateway. Channel notifications use the name of their
// channel.NotificationKind.
const (
	MsgMessageSent     MessageType = "message_sent"
	MsgMessageReceived MessageType = "message_received"
	MsgChatState       MessageType = "chat_state"
	MsgMembers         MessageType = "members"
	MsgRoom            MessageType = "room"
	MsgClosed          MessageType = "closed"
	MsgResult          MessageType = "result"
	MsgError           MessageType = "error"
)

// AllChannels subscribes a client to every channel.
const AllChannels = "*"

// Envelope is the wire format for all websocket messages. Replies carry the
// ID of the request they answer.
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SendMessageRequest is the payload of send_message. Text is shorthand for
// a single text/plain part.
type SendMessageRequest struct {
	Text  string         `json:"text,omitempty"`
	Parts []message.Part `json:"parts,omitempty"`
}

func (r SendMessageRequest) parts() []message.Part {
	if len(r.Parts) > 0 {
		return r.Parts
	}
	return []message.Part{message.NewTextPart(r.Text)}
}

// SendMessageResult answers send_message.
type SendMessageResult struct {
	Token string `json:"token"`
}

// AcknowledgeRequest is the payload of acknowledge.
type AcknowledgeRequest struct {
	Tokens []string `json:"tokens"`
}

// ChatStateRequest is the payload of set_chat_state.
type ChatStateRequest struct {
	State string `json:"state"`
}

// MessageEvent is the payload of message_sent and message_received.
type MessageEvent struct {
	Token   string          `json:"token,omitempty"`
	Message message.Message `json:"message"`
}

// ChatStateEvent is the payload of chat_state.
type ChatStateEvent struct {
	Contact message.Handle `json:"contact"`
	State   string         `json:"state"`
}

// MembersEvent is the payload of members.
type MembersEvent struct {
	Members []channel.Member `json:"members"`
}

// ErrorPayload is the payload of error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// eventFor converts a channel notification into an envelope.
func eventFor(n channel.Notification, now time.Time) (Envelope, error) {
	var payload any
	switch n.Kind {
	case channel.NotifyMessageSent, channel.NotifyMessageReceived:
		ev := MessageEvent{Token: n.Token}
		if n.Message != nil {
			ev.Message = *n.Message
		}
		payload = ev
	case channel.NotifyChatState:
		payload = ChatStateEvent{Contact: n.Contact, State: n.ChatState.String()}
	case channel.NotifyMembers:
		payload = MembersEvent{Members: n.Members}
	case channel.NotifyRoom:
		payload = n.Room
	}

	env := Envelope{
		Type:      MessageType(n.Kind.String()),
		Channel:   n.Channel,
		Timestamp: now,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = raw
	}
	return env, nil
}
