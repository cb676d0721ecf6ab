package message

// Header is the envelope of a message. Zero-valued optional fields are
// omitted from the wire form.
type Header struct {
	Token          string         `json:"message-token,omitempty"`
	Type           MessageType    `json:"message-type"`
	Sent           int64          `json:"message-sent,omitempty"`
	Received       int64          `json:"message-received,omitempty"`
	Sender         Handle         `json:"message-sender,omitempty"`
	SenderID       string         `json:"message-sender-id,omitempty"`
	DeliveryStatus DeliveryStatus `json:"delivery-status,omitempty"`
	DeliveryToken  string         `json:"delivery-token,omitempty"`
}

// Message is a header followed by zero or more body parts. Delivery reports
// have no body.
type Message struct {
	Header Header `json:"header"`
	Body   []Part `json:"body,omitempty"`
}

// Text returns the message's plain-text content.
func (m *Message) Text() string {
	return PlainText(m.Body)
}

// HasMedia reports whether the body carries a binary part.
func (m *Message) HasMedia() bool {
	return HasMedia(m.Body)
}

// IsDeliveryReport reports whether the message is a delivery report.
func (m *Message) IsDeliveryReport() bool {
	return m.Header.Type == TypeDeliveryReport
}
