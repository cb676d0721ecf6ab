package protocol

// Bus topics for protocol events.
const (
	TopicMessageReceived = "protocol.message_received"
	TopicMediaChunk      = "protocol.media_chunk"
	TopicTypingChanged   = "protocol.typing_changed"
	TopicDeliveryStatus  = "protocol.delivery_status"
	TopicChatChanged     = "protocol.chat_changed"
)

// MessageReceivedEvent reports a new message, inbound or sent from another
// session of the local account.
type MessageReceivedEvent struct {
	Message Message
}

// Topic implements bus.Event.
func (MessageReceivedEvent) Topic() string { return TopicMessageReceived }

// MediaChunkEvent carries a slice of a media payload. Offset is the position
// of Data in the payload; DeclaredSize is the payload's full size.
type MediaChunkEvent struct {
	Peer         string
	MessageID    uint64
	Data         []byte
	MimeType     string
	DeclaredType MessageType
	Offset       int64
	DeclaredSize int64
}

// Topic implements bus.Event.
func (MediaChunkEvent) Topic() string { return TopicMediaChunk }

// TypingChangedEvent reports a peer's typing state.
type TypingChangedEvent struct {
	Peer      string
	Composing bool
}

// Topic implements bus.Event.
func (TypingChangedEvent) Topic() string { return TopicTypingChanged }

// DeliveryStatusEvent reports the upstream state of an outgoing message.
type DeliveryStatusEvent struct {
	Peer      string
	MessageID uint64
	Status    DeliveryStatus
}

// Topic implements bus.Event.
func (DeliveryStatusEvent) Topic() string { return TopicDeliveryStatus }

// ChatChangedEvent reports a group chat's new participant list.
type ChatChangedEvent struct {
	ChatID       int64
	Participants []string
}

// Topic implements bus.Event.
func (ChatChangedEvent) Topic() string { return TopicChatChanged }
