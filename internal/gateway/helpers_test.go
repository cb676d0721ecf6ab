package gateway

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/cron/crontest"
	"github.com/flemzord/tgrelay/internal/handle"
	"github.com/flemzord/tgrelay/internal/protocol/protocoltest"
	"github.com/flemzord/tgrelay/internal/relay"
	"github.com/flemzord/tgrelay/internal/store/storetest"
)

const testToken = "test-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mustYAMLNode parses YAML text into a *yaml.Node for Configure calls.
func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// newTestManager returns a started relay manager over a fake protocol client.
func newTestManager(t *testing.T) (*relay.Manager, *protocoltest.FakeClient) {
	t.Helper()
	client := &protocoltest.FakeClient{Self: "user900"}
	m := relay.NewManager(relay.ManagerConfig{
		Client:  client,
		Bus:     bus.New(testLogger(), 0),
		Handles: handle.NewRegistry(),
		Timers:  &crontest.ManualTimers{},
		Logger:  testLogger(),
	})
	m.Start()
	t.Cleanup(m.Stop)
	return m, client
}

type testEnv struct {
	gateway *Gateway
	manager *relay.Manager
	client  *protocoltest.FakeClient
	history *storetest.Memory
	server  *httptest.Server
}

// newTestEnv serves a provisioned gateway bound to a real relay manager and
// an in-memory message log.
func newTestEnv(t *testing.T, auth AuthConfig, opts ...func(*Config)) *testEnv {
	t.Helper()

	appCtx := core.NewAppContext(testLogger(), t.TempDir())
	g := &Gateway{config: Config{Auth: auth}}
	for _, opt := range opts {
		opt(&g.config)
	}
	g.config.defaults()
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	manager, client := newTestManager(t)
	history := storetest.NewMemory()
	g.bind(manager)
	g.history = history
	g.startedAt = time.Now()

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(func() {
		g.hub.Close()
		srv.Close()
	})
	return &testEnv{gateway: g, manager: manager, client: client, history: history, server: srv}
}

// do sends an authenticated request to the test server.
func (e *testEnv) do(t *testing.T, method, path string, body []byte) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatal("condition not met before timeout")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
