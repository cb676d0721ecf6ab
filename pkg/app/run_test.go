package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/cron"
	"github.com/flemzord/tgrelay/internal/security"
	"github.com/flemzord/tgrelay/internal/store"
)

const testBotToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "tgrelay")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "tgrelay.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	_, err := ResolveConfigPath()
	if err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestConfigCandidates(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	got := ConfigCandidates()
	want := []string{"/xdg/tgrelay/tgrelay.yaml", "tgrelay.yaml"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/tgrelay" {
		t.Errorf("got %q", got)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")

	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".local", "share", "tgrelay")
	if got := DefaultDataDir(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewLogger_RedactsToken(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, security.NewRedactor())
	logger.Info("bot authenticated", "url", "https://api.telegram.org/bot"+testBotToken+"/getMe")
	logger.Debug("hidden")

	out := buf.String()
	if strings.Contains(out, testBotToken) {
		t.Errorf("token leaked: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %s", out)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tgrelay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRun_InvalidConfigPath(t *testing.T) {
	err := Run(context.Background(), RunParams{ConfigPath: "/nonexistent/config.yaml"})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	path := writeConfig(t, "not: valid: yaml: [")
	if err := Run(context.Background(), RunParams{ConfigPath: path}); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "modules:\n  foo: {}")
	if err := Run(context.Background(), RunParams{ConfigPath: path}); err == nil {
		t.Error("expected validation error")
	}
}

// fakeBotAPI answers the Bot API calls made while starting in polling mode.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()

	var result any = true
	switch method {
	case "getMe":
		result = map[string]any{"id": 999, "is_bot": true, "first_name": "relay", "username": "relay_bot"}
	case "getUpdates":
		time.Sleep(20 * time.Millisecond)
		result = []any{}
	case "sendMessage":
		result = map[string]any{
			"message_id": 7,
			"date":       time.Now().Unix(),
			"chat":       map[string]any{"id": 42, "type": "private"},
			"text":       "hello",
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeBotAPI) called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == method {
			return true
		}
	}
	return false
}

func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestLoad_StartsFullStack(t *testing.T) {
	api := &fakeBotAPI{}
	apiServer := httptest.NewServer(api)
	defer apiServer.Close()

	addr := freeAddr(t)
	dataDir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`version: "1"
modules:
  channel.telegram:
    token: "%s"
    api_url: "%s"
    polling_timeout: 1
    allow_users: ["*"]
  relay.manager:
    channels: ["user42"]
  gateway.http:
    bind: "%s"
    auth:
      bearer_token: "gw-token"
  store.sqlite:
    retention: 24h
`, testBotToken, apiServer.URL, addr))

	var logs bytes.Buffer
	inst, err := Load(RunParams{ConfigPath: path, DataDir: dataDir, LogOutput: &syncWriter{w: &logs}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantModules := []string{"store.sqlite", "channel.telegram", "relay.manager", "gateway.http"}
	if fmt.Sprint(inst.Modules) != fmt.Sprint(wantModules) {
		t.Errorf("Modules = %v, want %v", inst.Modules, wantModules)
	}
	if _, err := core.ServiceAs[store.Log](inst.Context, store.ServiceName); err != nil {
		t.Errorf("store service: %v", err)
	}
	if _, err := core.ServiceAs[*cron.Scheduler](inst.Context, ServiceScheduler); err != nil {
		t.Errorf("scheduler service: %v", err)
	}

	if err := inst.App.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stopped := false
	defer func() {
		if !stopped {
			inst.App.Stop()
		}
	}()

	if !api.called("getMe") {
		t.Error("getMe not called on start")
	}

	resp := waitGet(t, "http://"+addr+"/api/channels", "gw-token")
	var channels []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&channels); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if len(channels) != 1 || channels[0].ID != "user42" {
		t.Errorf("channels = %+v", channels)
	}

	inst.App.Stop()
	stopped = true

	if _, err := os.Stat(filepath.Join(dataDir, "messages.db")); err != nil {
		t.Errorf("message log not created in data dir: %v", err)
	}
	if strings.Contains(logs.String(), testBotToken) {
		t.Error("bot token leaked into logs")
	}
}

func waitGet(t *testing.T, url, token string) *http.Response {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp
		}
		if err == nil {
			_ = resp.Body.Close()
		}
		if time.Now().After(deadline) {
			t.Fatalf("GET %s did not succeed: %v", url, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func TestDispatchModule_StartStop(t *testing.T) {
	t.Parallel()

	appCtx := core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir())
	m := registerShared(appCtx, appCtx.Logger)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-m.done:
	default:
		t.Error("bus goroutine still running after Stop")
	}
}
