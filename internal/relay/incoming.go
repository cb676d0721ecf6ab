package relay

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/pkg/message"
)

// OnIncomingMessage relays a message for this channel. Text messages are
// dispatched at once. Other messages are held until their payload has
// arrived through OnMediaChunk; the payload is requested from the client.
func (r *Relay) OnIncomingMessage(msg protocol.Message, sender message.Handle) {
	if msg.IsText() {
		r.dispatch(msg, sender, nil)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if _, exists := r.messages[msg.ID]; !exists {
		r.metrics.PendingMedia(1)
	}
	r.messages[msg.ID] = pendingMessage{msg: msg, sender: sender}
	if !r.subscribed {
		r.chunkSub = r.bus.Subscribe(protocol.TopicMediaChunk, r.handleChunkEvent)
		r.subscribed = true
	}
	r.mu.Unlock()

	r.logger.Debug("media message pending", "message_id", msg.ID, "type", msg.Type.String())

	if err := r.client.RequestMediaData(r.ctx, r.identity.TargetID, msg.ID); err != nil {
		// The payload will never arrive; relay what is known.
		r.logger.Warn("media request failed, relaying text only",
			"message_id", msg.ID,
			"error", err,
		)
		if pm, ok := r.takePending(msg.ID); ok {
			r.metrics.NotificationDropped("media_unavailable")
			r.dispatch(pm.msg, pm.sender, nil)
		}
	}
}

// OnMediaChunk appends a chunk to the payload of a pending message. When
// the payload reaches the declared size the message is dispatched and its
// pending state removed. Chunks for other peers or for messages that are
// not pending are ignored.
func (r *Relay) OnMediaChunk(chunk protocol.MediaChunkEvent) {
	if chunk.Peer != r.identity.TargetID {
		return
	}

	r.mu.Lock()
	pm, ok := r.messages[chunk.MessageID]
	if !ok {
		r.mu.Unlock()
		return
	}

	p := r.payloads[chunk.MessageID]
	if p == nil {
		p = &pendingPayload{}
		r.payloads[chunk.MessageID] = p
	}
	if chunk.Offset != int64(len(p.data)) {
		r.logger.Warn("media chunk out of sequence",
			"message_id", chunk.MessageID,
			"offset", chunk.Offset,
			"have", len(p.data),
		)
	}
	p.data = append(p.data, chunk.Data...)
	p.mimeType = chunk.MimeType
	r.metrics.ChunkBytes(len(chunk.Data))

	if int64(len(p.data)) != chunk.DeclaredSize {
		r.mu.Unlock()
		return
	}

	media := message.NewMediaPart(p.mimeType, p.data)
	r.removePendingLocked(chunk.MessageID)
	r.mu.Unlock()

	r.dispatch(pm.msg, pm.sender, &media)
}

func (r *Relay) handleChunkEvent(e bus.Event) {
	if chunk, ok := e.(protocol.MediaChunkEvent); ok {
		r.OnMediaChunk(chunk)
	}
}

func (r *Relay) takePending(id uint64) (pendingMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pm, ok := r.messages[id]
	if ok {
		r.removePendingLocked(id)
	}
	return pm, ok
}

// removePendingLocked purges both pending entries of id and drops the chunk
// subscription once nothing is pending.
func (r *Relay) removePendingLocked(id uint64) {
	delete(r.messages, id)
	delete(r.payloads, id)
	r.metrics.PendingMedia(-1)
	if len(r.messages) == 0 {
		r.unsubscribeChunksLocked()
	}
}

// dispatch publishes msg on the channel. Messages from the local account
// are published as sent with the self identity; others as received with
// the resolved sender identity. An inbound group message whose sender is
// not in the roster is dropped.
func (r *Relay) dispatch(msg protocol.Message, sender message.Handle, media *message.Part) {
	_, span := tracer.Start(context.Background(), "relay.dispatch",
		trace.WithAttributes(
			attribute.String("relay.target", r.identity.TargetID),
			attribute.Int64("relay.message_id", int64(msg.ID)),
			attribute.String("relay.message_type", msg.Type.String()),
		),
	)
	defer span.End()

	token := strconv.FormatUint(msg.ID, 10)
	header := message.Header{
		Token: token,
		Type:  message.TypeNormal,
		Sent:  msg.Timestamp.Unix(),
	}
	body := []message.Part{message.NewTextPart(msg.Text)}
	if !msg.IsText() && media != nil {
		body = append(body, *media)
	}

	if msg.Outgoing() {
		header.Sender = r.identity.SelfHandle
		header.SenderID = r.identity.SelfID
		r.obj.MessageSent(message.Message{Header: header, Body: body}, token)
		r.metrics.MessageRelayed("sent")
		return
	}

	senderID, ok := r.resolveSender(sender)
	if !ok {
		r.logger.Debug("dropping message from unresolved sender",
			"message_id", msg.ID,
			"sender_handle", uint32(sender),
		)
		span.SetAttributes(attribute.Bool("relay.dropped", true))
		r.metrics.NotificationDropped("unresolved_sender")
		return
	}

	header.Received = r.now().Unix()
	header.Sender = sender
	header.SenderID = senderID
	r.obj.MessageReceived(message.Message{Header: header, Body: body})
	r.metrics.MessageRelayed("incoming")
}

func (r *Relay) resolveSender(sender message.Handle) (string, bool) {
	g, ok := r.obj.Group()
	if !ok {
		return r.identity.TargetID, true
	}
	return g.Roster.Identifier(sender)
}
