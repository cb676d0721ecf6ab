package relay

import (
	"context"
	"strconv"

	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/pkg/message"
)

// OnTypingChanged publishes the peer's chat state. Events for other peers
// are ignored.
func (r *Relay) OnTypingChanged(peer string, composing bool) {
	if peer != r.identity.TargetID {
		return
	}
	state := message.ChatStateActive
	if composing {
		state = message.ChatStateComposing
	}
	r.obj.ChatStateChanged(r.identity.TargetHandle, state)
}

// OnDeliveryStatusChanged publishes a delivery report for an outgoing
// message. Sent maps to Accepted and Read to Read; other statuses and other
// peers are ignored.
func (r *Relay) OnDeliveryStatusChanged(peer string, messageID uint64, status protocol.DeliveryStatus) {
	if peer != r.identity.TargetID {
		return
	}

	var mapped message.DeliveryStatus
	switch status {
	case protocol.DeliveryStatusSent:
		mapped = message.DeliveryAccepted
	case protocol.DeliveryStatusRead:
		mapped = message.DeliveryRead
	default:
		return
	}

	r.obj.MessageReceived(message.Message{Header: message.Header{
		Sender:         r.identity.TargetHandle,
		SenderID:       r.identity.TargetID,
		Type:           message.TypeDeliveryReport,
		DeliveryStatus: mapped,
		DeliveryToken:  strconv.FormatUint(messageID, 10),
	}})
	r.metrics.DeliveryReport(mapped)
}

// OnGroupRosterChanged replaces the member list of a group channel and
// republishes the room title. Events for other chats, and any event on a
// direct channel, are ignored.
func (r *Relay) OnGroupRosterChanged(ctx context.Context, chatID int64, members []channel.Member) {
	if _, ok := r.obj.Group(); !ok {
		return
	}
	if protocol.ChatIdentifier(chatID) != r.identity.TargetID {
		return
	}

	if err := r.obj.SetMembers(members); err != nil {
		r.logger.Warn("update members failed", "error", err)
		return
	}

	info, ok := r.client.ChatInfo(ctx, chatID)
	if !ok {
		return
	}
	_ = r.obj.SetTitle(info.Title, unixOrZero(info.Created))
	_ = r.obj.SetConfigurationRetrieved(true)
}
