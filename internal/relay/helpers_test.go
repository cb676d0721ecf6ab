package relay

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/channel/channeltest"
	"github.com/flemzord/tgrelay/internal/cron/crontest"
	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/internal/protocol/protocoltest"
	"github.com/flemzord/tgrelay/pkg/message"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	relay    *Relay
	obj      *channel.Object
	client   *protocoltest.FakeClient
	bus      *bus.Bus
	timers   *crontest.ManualTimers
	recorder *channeltest.Recorder
}

const (
	selfID       = "user900"
	selfHandle   = message.Handle(900)
	directTarget = "user42"
	directHandle = message.Handle(42)
	groupTarget  = "chat-100"
	groupHandle  = message.Handle(100)
)

func newFixture(t *testing.T, identity channel.Identity, kind channel.Kind, client *protocoltest.FakeClient) *fixture {
	t.Helper()

	if client == nil {
		client = &protocoltest.FakeClient{Self: selfID}
	}
	obj := channel.NewObject(identity, kind, discardLogger())
	rec := &channeltest.Recorder{}
	obj.AddObserver(rec)

	b := bus.New(discardLogger(), 0)
	timers := &crontest.ManualTimers{}

	r, err := New(context.Background(), Config{
		Channel: obj,
		Client:  client,
		Bus:     b,
		Timers:  timers,
		Logger:  discardLogger(),
		Now:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)

	return &fixture{relay: r, obj: obj, client: client, bus: b, timers: timers, recorder: rec}
}

func newDirectFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixture(t, channel.Identity{
		TargetID:         directTarget,
		TargetHandle:     directHandle,
		TargetHandleType: message.HandleTypeContact,
		SelfID:           selfID,
		SelfHandle:       selfHandle,
	}, channel.Direct{}, nil)
}

func newGroupFixture(t *testing.T, client *protocoltest.FakeClient) *fixture {
	t.Helper()
	return newFixture(t, channel.Identity{
		TargetID:         groupTarget,
		TargetHandle:     groupHandle,
		TargetHandleType: message.HandleTypeRoom,
		SelfID:           selfID,
		SelfHandle:       selfHandle,
	}, channel.NewGroup(), client)
}

func textMessage(id uint64, peer, text string) protocol.Message {
	return protocol.Message{
		ID:        id,
		Peer:      peer,
		Sender:    peer,
		Text:      text,
		Timestamp: fixedNow.Add(-time.Minute),
		Type:      protocol.MessageTypeText,
	}
}

func photoMessage(id uint64, peer, caption string) protocol.Message {
	m := textMessage(id, peer, caption)
	m.Type = protocol.MessageTypePhoto
	return m
}

func chunk(peer string, id uint64, data string, offset, size int64) protocol.MediaChunkEvent {
	return protocol.MediaChunkEvent{
		Peer:         peer,
		MessageID:    id,
		Data:         []byte(data),
		MimeType:     "image/jpeg",
		DeclaredType: protocol.MessageTypePhoto,
		Offset:       offset,
		DeclaredSize: size,
	}
}
