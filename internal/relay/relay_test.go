package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/internal/protocol/protocoltest"
	"github.com/flemzord/tgrelay/pkg/message"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	obj := channel.NewObject(channel.Identity{TargetID: directTarget}, nil, discardLogger())
	client := &protocoltest.FakeClient{}
	b := bus.New(discardLogger(), 0)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no channel", Config{Client: client, Bus: b, Timers: nil}},
		{"no client", Config{Channel: obj, Bus: b}},
		{"no bus", Config{Channel: obj, Client: client}},
		{"no timers", Config{Channel: obj, Client: client, Bus: b}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSendOutgoing(t *testing.T) {
	t.Parallel()
	f := newDirectFixture(t)

	token, err := f.obj.SendMessage(context.Background(), []message.Part{
		message.NewMediaPart("image/png", []byte{1}),
		message.NewTextPart("hello"),
		message.NewTextPart("ignored"),
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if token != "1" {
		t.Errorf("token = %q, want %q", token, "1")
	}

	sent := f.client.Sent()
	if len(sent) != 1 || sent[0].Peer != directTarget || sent[0].Text != "hello" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestSendOutgoing_NoText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []message.Part
	}{
		{"no parts", nil},
		{"media only", []message.Part{message.NewMediaPart("image/png", []byte{1})}},
		{"blank text", []message.Part{message.NewTextPart(" \n\t")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newDirectFixture(t)

			token, err := f.relay.SendOutgoing(context.Background(), tt.parts)
			if err != nil {
				t.Fatalf("SendOutgoing: %v", err)
			}
			if token != "" {
				t.Errorf("token = %q, want empty", token)
			}
			if sent := f.client.Sent(); len(sent) != 0 {
				t.Errorf("sent = %+v, want nothing", sent)
			}

			// The empty token is not acknowledged upstream.
			f.relay.AcknowledgeRead(context.Background(), token)
			if reads := f.client.Reads(); len(reads) != 0 {
				t.Errorf("reads = %+v", reads)
			}
		})
	}
}

func TestSendOutgoing_AfterClose(t *testing.T) {
	t.Parallel()
	f := newDirectFixture(t)
	f.relay.Close()

	_, err := f.relay.SendOutgoing(context.Background(), []message.Part{message.NewTextPart("late")})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if sent := f.client.Sent(); len(sent) != 0 {
		t.Errorf("sent = %+v, want nothing", sent)
	}
}

func TestSendOutgoing_ClientError(t *testing.T) {
	t.Parallel()

	boom := errors.New("flood wait")
	client := &protocoltest.FakeClient{
		Self: selfID,
		SendFunc: func(context.Context, string, string) (uint64, error) {
			return 0, boom
		},
	}
	f := newFixture(t, channel.Identity{TargetID: directTarget, TargetHandle: directHandle, TargetHandleType: message.HandleTypeContact}, channel.Direct{}, client)

	_, err := f.relay.SendOutgoing(context.Background(), []message.Part{message.NewTextPart("x")})
	if !errors.Is(err, ErrSend) {
		t.Errorf("err = %v, want ErrSend", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped client error", err)
	}
	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.Peer != directTarget {
		t.Errorf("errors.As SendError = %+v", sendErr)
	}
}

func TestAcknowledgeRead(t *testing.T) {
	t.Parallel()
	f := newDirectFixture(t)

	if err := f.obj.AcknowledgeMessage(context.Background(), "17", "not-a-number"); err != nil {
		t.Fatalf("AcknowledgeMessage: %v", err)
	}

	reads := f.client.Reads()
	if len(reads) != 1 {
		t.Fatalf("reads = %+v, want exactly one", reads)
	}
	if reads[0].Peer != directTarget || reads[0].ID != 17 {
		t.Errorf("read = %+v", reads[0])
	}
}

func TestIncomingText_Direct(t *testing.T) {
	t.Parallel()
	f := newDirectFixture(t)

	f.relay.OnIncomingMessage(textMessage(5, directTarget, "hi there"), directHandle)

	got := f.recorder.Received()
	if len(got) != 1 {
		t.Fatalf("received %d notifications, want 1", len(got))
	}
	msg := got[0].Message
	h := msg.Header
	if h.Token != "5" || h.Type != message.TypeNormal {
		t.Errorf("header = %+v", h)
	}
	if h.Sender != directHandle || h.SenderID != directTarget {
		t.Errorf("sender = %d/%q", h.Sender, h.SenderID)
	}
	if h.Received != fixedNow.Unix() {
		t.Errorf("received = %d, want %d", h.Received, fixedNow.Unix())
	}
	if h.Sent != fixedNow.Unix()-60 {
		t.Errorf("sent = %d", h.Sent)
	}
	if len(msg.Body) != 1 || msg.Text() != "hi there" {
		t.Errorf("body = %+v", msg.Body)
	}
	if len(f.client.MediaRequests()) != 0 {
		t.Error("text message requested media")
	}
}

func TestIncomingText_Outgoing(t *testing.T) {
	t.Parallel()
	f := newDirectFixture(t)

	msg := textMessage(8, directTarget, "from another session")
	msg.Flags = protocol.FlagOut
	f.relay.OnIncomingMessage(msg, directHandle)

	if len(f.recorder.Received()) != 0 {
		t.Error("outgoing message published as received")
	}
	sent := f.recorder.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent notifications = %d, want 1", len(sent))
	}
	h := sent[0].Message.Header
	if sent[0].Token != "8" || h.Sender != selfHandle || h.SenderID != selfID || h.Received != 0 {
		t.Errorf("sent header = %+v token %q", h, sent[0].Token)
	}
}
