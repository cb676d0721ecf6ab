package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flemzord/tgrelay/internal/store"
)

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return tc.Text
}

func TestMCP_SendMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, AuthConfig{BearerToken: testToken})

	res, err := env.gateway.mcpSendMessage(t.Context(), toolRequest("send_message", map[string]any{
		"channel": "user42",
		"text":    "from mcp",
	}))
	if err != nil {
		t.Fatalf("mcpSendMessage: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != `{"token":"1"}` {
		t.Errorf("result = %s", got)
	}
	if sent := env.client.Sent(); len(sent) != 1 || sent[0].Text != "from mcp" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestMCP_SendMessageErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, AuthConfig{BearerToken: testToken})

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing channel", map[string]any{"text": "x"}, "channel"},
		{"missing text", map[string]any{"channel": "user1"}, "text"},
		{"invalid target", map[string]any{"channel": "bogus", "text": "x"}, "open channel"},
	}
	for _, tt := range tests {
		res, err := env.gateway.mcpSendMessage(t.Context(), toolRequest("send_message", tt.args))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !res.IsError || !strings.Contains(resultText(t, res), tt.want) {
			t.Errorf("%s: result = %+v", tt.name, res)
		}
	}

	env.client.SendFunc = func(context.Context, string, string) (uint64, error) {
		return 0, errors.New("flood wait")
	}
	res, err := env.gateway.mcpSendMessage(t.Context(), toolRequest("send_message", map[string]any{
		"channel": "user1", "text": "x",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "flood wait") {
		t.Errorf("result = %+v", res)
	}
}

func TestMCP_ListMessages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, AuthConfig{BearerToken: testToken})
	_, err := env.history.Append(t.Context(), store.Record{
		Channel:   "user42",
		Kind:      store.KindSent,
		Token:     "9",
		Text:      "logged",
		CreatedAt: time.Unix(1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := env.gateway.mcpListMessages(t.Context(), toolRequest("list_messages", map[string]any{
		"channel": "user42",
		"limit":   float64(10),
	}))
	if err != nil {
		t.Fatalf("mcpListMessages: %v", err)
	}
	if res.IsError || !strings.Contains(resultText(t, res), `"logged"`) {
		t.Errorf("result = %s", resultText(t, res))
	}

	res, _ = env.gateway.mcpListMessages(t.Context(), toolRequest("list_messages", map[string]any{
		"channel": "user42",
		"limit":   float64(0),
	}))
	if !res.IsError {
		t.Error("zero limit accepted")
	}

	env.gateway.history = nil
	res, _ = env.gateway.mcpListMessages(t.Context(), toolRequest("list_messages", map[string]any{"channel": "user42"}))
	if !res.IsError {
		t.Error("list without a message log succeeded")
	}
}

func TestMCP_ListChannels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, AuthConfig{BearerToken: testToken})
	if _, err := env.manager.EnsureChannel(t.Context(), "user42"); err != nil {
		t.Fatal(err)
	}

	res, err := env.gateway.mcpListChannels(t.Context(), toolRequest("list_channels", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(t, res), `"id":"user42"`) {
		t.Errorf("result = %s", resultText(t, res))
	}
}

func TestMCP_Endpoint(t *testing.T) {
	t.Parallel()

	enabled := true
	env := newTestEnv(t, AuthConfig{BearerToken: testToken}, func(c *Config) {
		c.MCP.Enabled = &enabled
	})

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	req, _ := http.NewRequestWithContext(t.Context(), http.MethodPost, env.server.URL+"/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	for _, tool := range []string{"send_message", "list_messages", "list_channels"} {
		if !strings.Contains(string(raw), tool) {
			t.Errorf("tools/list missing %s: %s", tool, raw)
		}
	}
}
