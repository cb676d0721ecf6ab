// Package store defines the message log: the record persisted for each
// relayed message and the interface the storage backends implement.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/flemzord/tgrelay/internal/channel"
)

// ServiceName is the service registry key of the active Log.
const ServiceName = "store"

// ErrInvalidRecord indicates a record without a channel or kind.
var ErrInvalidRecord = errors.New("store: invalid record")

// Kind classifies a record.
type Kind string

// Record kinds.
const (
	KindSent           Kind = "sent"
	KindReceived       Kind = "received"
	KindDeliveryReport Kind = "delivery_report"
)

// Record is one entry of the message log.
type Record struct {
	ID             int64     `json:"id"`
	Channel        string    `json:"channel"`
	Kind           Kind      `json:"kind"`
	Token          string    `json:"token,omitempty"`
	SenderID       string    `json:"sender_id,omitempty"`
	Text           string    `json:"text,omitempty"`
	MediaTypes     []string  `json:"media_types,omitempty"`
	DeliveryStatus string    `json:"delivery_status,omitempty"`
	DeliveryToken  string    `json:"delivery_token,omitempty"`
	Sent           time.Time `json:"sent,omitzero"`
	Received       time.Time `json:"received,omitzero"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the fields every backend requires.
func (r Record) Validate() error {
	if r.Channel == "" || r.Kind == "" {
		return ErrInvalidRecord
	}
	return nil
}

// JoinMediaTypes encodes MediaTypes for a single text column.
func (r Record) JoinMediaTypes() string {
	return strings.Join(r.MediaTypes, ",")
}

// SplitMediaTypes decodes a column written by JoinMediaTypes.
func SplitMediaTypes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Log is a persistent message log.
type Log interface {
	// Append stores r and returns its id.
	Append(ctx context.Context, r Record) (int64, error)

	// List returns up to limit records of a channel, newest last.
	List(ctx context.Context, channel string, limit int) ([]Record, error)

	// Prune deletes records created before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// FromNotification converts a channel notification into a record. Only
// sent, received and delivery-report notifications are logged.
func FromNotification(n channel.Notification, now time.Time) (Record, bool) {
	if n.Message == nil {
		return Record{}, false
	}

	var kind Kind
	switch n.Kind {
	case channel.NotifyMessageSent:
		kind = KindSent
	case channel.NotifyMessageReceived:
		kind = KindReceived
		if n.Message.IsDeliveryReport() {
			kind = KindDeliveryReport
		}
	default:
		return Record{}, false
	}

	h := n.Message.Header
	r := Record{
		Channel:   n.Channel,
		Kind:      kind,
		Token:     n.Token,
		SenderID:  h.SenderID,
		Text:      n.Message.Text(),
		Sent:      unix(h.Sent),
		Received:  unix(h.Received),
		CreatedAt: now.UTC(),
	}
	if kind == KindDeliveryReport {
		r.DeliveryStatus = h.DeliveryStatus.String()
		r.DeliveryToken = h.DeliveryToken
	}
	for _, p := range n.Message.Body {
		if !p.IsText() {
			r.MediaTypes = append(r.MediaTypes, p.ContentType)
		}
	}
	return r, true
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
