package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/gateway"
	"github.com/flemzord/tgrelay/internal/protocol"
	"github.com/flemzord/tgrelay/internal/security"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Token: "123456:ABC-DEF_ghijk", Mode: "polling"}, false},
		{"invalid token", Config{Token: "invalid-token"}, true},
		{"invalid api url", Config{Token: "123:abc", APIURL: "not-a-url"}, true},
		{"polling timeout", Config{Token: "123:abc", PollingTimeout: 60}, true},
		{"message length", Config{Token: "123:abc", MaxMessageLength: 10000}, true},
		{"negative rate", Config{Token: "123:abc", RateLimit: -1}, true},
		{"media size", Config{Token: "123:abc", MaxMediaSize: 1 << 30}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.defaults()
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	cfg.defaults()

	if cfg.Mode != "polling" || cfg.MaxMessageLength != MaxMessageLength {
		t.Errorf("mode/length = %q/%d", cfg.Mode, cfg.MaxMessageLength)
	}
	if cfg.MaxMediaSize != maxDownloadSize || cfg.MediaChunkSize != defaultChunkSize {
		t.Errorf("media = %d/%d", cfg.MaxMediaSize, cfg.MediaChunkSize)
	}
}

func newTestAppContext(t *testing.T) (*core.AppContext, *bus.Bus) {
	t.Helper()
	ctx := core.NewAppContext(discardLogger(), t.TempDir())
	b := bus.New(discardLogger(), 0)
	ctx.RegisterService(serviceBus, b)
	return ctx, b
}

func TestModule_ProvisionRegistersClient(t *testing.T) {
	t.Parallel()
	appCtx, _ := newTestAppContext(t)

	mod := &Telegram{config: Config{Token: "123:abc"}}
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	svc, err := core.ServiceAs[protocol.Client](appCtx, ServiceClient)
	if err != nil {
		t.Fatalf("client service: %v", err)
	}
	if svc != protocol.Client(mod.Client()) {
		t.Error("registered client differs from module client")
	}
}

func TestModule_ProvisionRegistersTokenForRedaction(t *testing.T) {
	t.Parallel()
	appCtx, _ := newTestAppContext(t)
	redactor := security.NewRedactor()
	appCtx.RegisterService(security.ServiceName, redactor)

	mod := &Telegram{config: Config{Token: "42:short-token"}}
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if got := redactor.Redact("bot42:short-token/getMe"); strings.Contains(got, "short-token") {
		t.Errorf("token not redacted: %q", got)
	}
}

func TestModule_ProvisionRequiresBus(t *testing.T) {
	t.Parallel()
	mod := &Telegram{}
	if err := mod.Provision(core.NewAppContext(discardLogger(), "")); err == nil {
		t.Error("Provision() succeeded without a bus")
	}
}

func TestModule_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing token", Config{}, "token is required"},
		{"bad mode", Config{Token: "1:a", Mode: "push"}, "invalid mode"},
		{"webhook without url", Config{Token: "1:a", Mode: "webhook"}, "webhook_url is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			appCtx, _ := newTestAppContext(t)
			mod := &Telegram{config: tt.cfg}
			if err := mod.Provision(appCtx); err != nil {
				t.Fatalf("Provision() error: %v", err)
			}
			err := mod.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestModule_WebhookLifecycle(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	appCtx, _ := newTestAppContext(t)
	dispatcher := gateway.NewWebhookDispatcher(discardLogger(), nil)
	appCtx.RegisterService(serviceWebhookDispatcher, dispatcher)

	mod := &Telegram{
		config: Config{
			Token:         testToken,
			Mode:          "webhook",
			WebhookURL:    "https://relay.example.com/webhooks/telegram",
			WebhookSecret: "s3cret",
			APIURL:        api.server.URL,
			AllowUsers:    []string{"*"},
		},
		httpClient: api.server.Client(),
	}
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := mod.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if err := mod.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if got := mod.Client().SelfIdentifier(); got != "user999" {
		t.Errorf("SelfIdentifier() = %q", got)
	}
	if n := len(api.callsTo("setWebhook")); n != 1 {
		t.Fatalf("setWebhook calls = %d, want 1", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mod.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if n := len(api.callsTo("deleteWebhook")); n != 1 {
		t.Errorf("deleteWebhook calls = %d, want 1", n)
	}
}

func TestModule_PollingStopCancelsLongPoll(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	appCtx, _ := newTestAppContext(t)

	mod := &Telegram{
		config: Config{
			Token:          testToken,
			Mode:           "polling",
			PollingTimeout: 30,
			APIURL:         api.server.URL,
			AllowUsers:     []string{"*"},
		},
		httpClient: api.server.Client(),
	}
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := mod.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(api.callsTo("getUpdates")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("getUpdates was never called")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := mod.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Stop() took %v, want the pending long poll cancelled", elapsed)
	}
	if mod.poller != nil {
		t.Error("poller still set after Stop")
	}
}

func TestModule_WebhookRequiresDispatcher(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	appCtx, _ := newTestAppContext(t)

	mod := &Telegram{
		config: Config{
			Token:      testToken,
			Mode:       "webhook",
			WebhookURL: "https://relay.example.com/webhooks/telegram",
			APIURL:     api.server.URL,
		},
		httpClient: api.server.Client(),
	}
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := mod.Start(); err == nil || !strings.Contains(err.Error(), "gateway") {
		t.Errorf("Start() err = %v, want missing dispatcher", err)
	}
}

func TestModule_StartRejectsBadToken(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	appCtx, _ := newTestAppContext(t)

	mod := &Telegram{
		config:     Config{Token: "1:wrong", Mode: "webhook", APIURL: api.server.URL},
		httpClient: api.server.Client(),
	}
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := mod.Start(); err == nil {
		t.Error("Start() succeeded with a token the API rejects")
	}
}
