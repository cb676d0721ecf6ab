package relay

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/pkg/message"
)

// SendOutgoing sends the first text/plain part of parts to the peer and
// returns the upstream message id as a decimal token. The Bot API rejects
// blank text, so a message whose text part is missing or blank sends
// nothing and returns an empty token. After Close it returns ErrClosed.
func (r *Relay) SendOutgoing(ctx context.Context, parts []message.Part) (string, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	text := message.PlainText(parts)
	if strings.TrimSpace(text) == "" {
		r.logger.Debug("outgoing message has no text, nothing sent")
		return "", nil
	}

	ctx, span := tracer.Start(ctx, "relay.send",
		trace.WithAttributes(attribute.String("relay.target", r.identity.TargetID)),
	)
	defer span.End()

	id, err := r.client.SendMessage(ctx, r.identity.TargetID, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		r.logger.Warn("send failed", "error", err)
		return "", &SendError{Peer: r.identity.TargetID, Err: err}
	}

	token := strconv.FormatUint(id, 10)
	span.SetAttributes(attribute.String("relay.token", token))
	r.metrics.MessageRelayed("outgoing")
	return token, nil
}

// AcknowledgeRead marks the message identified by token as read upstream.
// Tokens that are not decimal message ids are ignored.
func (r *Relay) AcknowledgeRead(ctx context.Context, token string) {
	if token == "" {
		return
	}
	id, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		r.logger.Warn("ignoring acknowledgement with invalid token", "token", token)
		return
	}
	if err := r.client.SetMessageRead(ctx, r.identity.TargetID, id); err != nil {
		r.logger.Warn("mark read failed", "token", token, "error", err)
	}
}

// OnLocalChatStateRequested forwards the local chat state upstream.
// Composing starts typing and arms a timer that repeats the indicator so it
// does not expire; any other state stops typing and disarms the timer.
// Requests are serialized so the last one decides the timer state.
func (r *Relay) OnLocalChatStateRequested(ctx context.Context, state message.ChatState) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if state == message.ChatStateComposing {
		if r.stopTyping == nil {
			r.stopTyping = r.timers.Every(r.interval, r.reactivateTyping)
			r.metrics.TypingTimer(1)
		}
	} else {
		r.disarmTypingLocked()
	}
	r.mu.Unlock()

	kind, msg := protocol.TypingNone, "clear typing failed"
	if state == message.ChatStateComposing {
		kind, msg = protocol.TypingTyping, "set typing failed"
	}
	if err := r.client.SetTyping(ctx, r.identity.TargetID, kind); err != nil {
		r.logger.Debug(msg, "error", err)
	}
}

// TypingArmed reports whether the typing reactivation timer is running.
func (r *Relay) TypingArmed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopTyping != nil
}

func (r *Relay) reactivateTyping() {
	if err := r.client.SetTyping(r.ctx, r.identity.TargetID, protocol.TypingTyping); err != nil {
		r.logger.Debug("repeat typing failed", "error", err)
	}
}

func (r *Relay) disarmTypingLocked() {
	if r.stopTyping == nil {
		return
	}
	r.stopTyping()
	r.stopTyping = nil
	r.metrics.TypingTimer(-1)
}
