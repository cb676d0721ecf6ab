package message

// ContentTypePlain is the content type of a plain-text part.
const ContentTypePlain = "text/plain"

// Part is one {content-type, content} entry in a message body. Text parts
// carry Content; binary parts carry Data.
type Part struct {
	ContentType string `json:"content-type"`
	Content     string `json:"content,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// NewTextPart creates a text/plain part.
func NewTextPart(text string) Part {
	return Part{ContentType: ContentTypePlain, Content: text}
}

// NewMediaPart creates a binary part. The data slice is copied.
func NewMediaPart(mimeType string, data []byte) Part {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Part{ContentType: mimeType, Data: cp}
}

// IsText reports whether the part is a plain-text part.
func (p Part) IsText() bool {
	return p.ContentType == ContentTypePlain
}

// PlainText returns the content of the first text/plain part, or "" when
// no part qualifies.
func PlainText(parts []Part) string {
	for _, p := range parts {
		if p.IsText() {
			return p.Content
		}
	}
	return ""
}

// HasMedia reports whether any part carries binary data.
func HasMedia(parts []Part) bool {
	for _, p := range parts {
		if !p.IsText() && len(p.Data) > 0 {
			return true
		}
	}
	return false
}
