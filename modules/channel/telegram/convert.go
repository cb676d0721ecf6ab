package telegram

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/flemzord/tgrelay/internal/protocol"
	"gopkg.in/telebot.v3"
)

// mediaRef locates the payload of a non-text message.
type mediaRef struct {
	typ      protocol.MessageType
	fileID   string
	mimeType string
	size     int64
	lat, lng float64
}

// peerIdentifier returns the conversation identifier of chat. Private chats
// share the id of the user on the other side.
func peerIdentifier(chat *telebot.Chat) string {
	if chat.Type == telebot.ChatPrivate {
		return protocol.UserIdentifier(chat.ID)
	}
	return protocol.ChatIdentifier(chat.ID)
}

func isGroup(chat *telebot.Chat) bool {
	return chat != nil && (chat.Type == telebot.ChatGroup || chat.Type == telebot.ChatSuperGroup)
}

// senderIdentifier returns the user identifier of the author of m, falling
// back to the peer for anonymous posts.
func senderIdentifier(m *telebot.Message) string {
	if m.Sender != nil {
		return protocol.UserIdentifier(m.Sender.ID)
	}
	return peerIdentifier(m.Chat)
}

// isServiceMessage reports whether m only announces a chat change.
func isServiceMessage(m *telebot.Message) bool {
	return m.UserJoined != nil || len(m.UsersJoined) > 0 || m.UserLeft != nil || m.NewGroupTitle != ""
}

// convertMessage maps a Bot API message to a protocol message and the
// reference of its payload. Service messages yield ok == false.
func convertMessage(m *telebot.Message, selfID int64) (msg protocol.Message, ref mediaRef, ok bool) {
	if m == nil || m.Chat == nil || isServiceMessage(m) {
		return protocol.Message{}, mediaRef{}, false
	}

	msg = protocol.Message{
		ID:        uint64(m.ID),
		Peer:      peerIdentifier(m.Chat),
		Sender:    senderIdentifier(m),
		Timestamp: time.Unix(m.Unixtime, 0),
		Text:      m.Caption,
	}
	if m.IsForwarded() {
		msg.Flags |= protocol.FlagForwarded
	}
	if m.IsReply() {
		msg.Flags |= protocol.FlagReply
	}
	if m.Sender != nil && selfID != 0 && m.Sender.ID == selfID {
		msg.Flags |= protocol.FlagOut
	}

	switch {
	case m.Photo != nil:
		ref = mediaRef{fileID: m.Photo.FileID, mimeType: "image/jpeg", size: int64(m.Photo.FileSize)}
		ref.typ = protocol.MessageTypePhoto
	case m.Audio != nil:
		ref = mediaRef{fileID: m.Audio.FileID, mimeType: m.Audio.MIME, size: int64(m.Audio.FileSize)}
		ref.typ = protocol.MessageTypeAudio
	case m.Voice != nil:
		ref = mediaRef{fileID: m.Voice.FileID, mimeType: m.Voice.MIME, size: int64(m.Voice.FileSize)}
		ref.typ = protocol.MessageTypeVoice
	case m.Animation != nil:
		ref = mediaRef{fileID: m.Animation.FileID, mimeType: m.Animation.MIME, size: int64(m.Animation.FileSize)}
		ref.typ = protocol.MessageTypeVideo
	case m.Video != nil:
		ref = mediaRef{fileID: m.Video.FileID, mimeType: m.Video.MIME, size: int64(m.Video.FileSize)}
		ref.typ = protocol.MessageTypeVideo
	case m.VideoNote != nil:
		ref = mediaRef{fileID: m.VideoNote.FileID, mimeType: "video/mp4", size: int64(m.VideoNote.FileSize)}
		ref.typ = protocol.MessageTypeVideo
	case m.Document != nil:
		ref = mediaRef{fileID: m.Document.FileID, mimeType: m.Document.MIME, size: int64(m.Document.FileSize)}
		if ref.mimeType == "" {
			ref.mimeType = guessMIME(m.Document.FileName)
		}
		ref.typ = protocol.MessageTypeDocument
	case m.Sticker != nil:
		mime := "image/webp"
		if m.Sticker.Animated {
			mime = "application/x-tgsticker"
		}
		ref = mediaRef{fileID: m.Sticker.FileID, mimeType: mime, size: int64(m.Sticker.FileSize)}
		ref.typ = protocol.MessageTypeSticker
	case m.Location != nil:
		ref = mediaRef{lat: float64(m.Location.Lat), lng: float64(m.Location.Lng), mimeType: geoMIME}
		ref.typ = protocol.MessageTypeGeo
	case m.Text != "":
		msg.Text = m.Text
		ref.typ = protocol.MessageTypeText
	default:
		ref.typ = protocol.MessageTypeUnsupported
	}

	msg.Type = ref.typ
	return msg, ref, true
}

// guessMIME infers a MIME type from a file name.
func guessMIME(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".mp4":
		return "video/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
