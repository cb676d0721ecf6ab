package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockWebhookHandler struct {
	mu     sync.Mutex
	called bool
	source string
	body   string
	err    error
}

func (m *mockWebhookHandler) HandleWebhook(_ context.Context, source string, body []byte, _ http.Header) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called = true
	m.source = source
	m.body = string(body)
	return m.err
}

func signPayload(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func serveWebhook(t *testing.T, d *WebhookDispatcher, source, body, sig string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/webhooks/{source}", d.ServeHTTP)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+source, strings.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Signature-256", sig)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookDispatcher(t *testing.T) {
	t.Parallel()

	const body = `{"update_id":1}`

	tests := []struct {
		name       string
		secret     string
		configured map[string]string
		sig        string
		handlerErr error
		wantCode   int
		wantCalled bool
	}{
		{name: "no secret", wantCode: http.StatusOK, wantCalled: true},
		{name: "valid signature", secret: "s", sig: signPayload(body, "s"), wantCode: http.StatusOK, wantCalled: true},
		{name: "invalid signature", secret: "s", sig: signPayload(body, "other"), wantCode: http.StatusUnauthorized},
		{name: "missing signature", secret: "s", wantCode: http.StatusUnauthorized},
		{
			name:       "configured secret fallback",
			configured: map[string]string{"telegram": "cfg"},
			sig:        signPayload(body, "cfg"),
			wantCode:   http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "configured secret enforced",
			configured: map[string]string{"telegram": "cfg"},
			wantCode:   http.StatusUnauthorized,
		},
		{name: "handler error", handlerErr: errors.New("boom"), wantCode: http.StatusInternalServerError, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := NewWebhookDispatcher(testLogger(), tt.configured)
			h := &mockWebhookHandler{err: tt.handlerErr}
			d.Register("telegram", h, tt.secret)

			rec := serveWebhook(t, d, "telegram", body, tt.sig)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if h.called != tt.wantCalled {
				t.Fatalf("called = %v, want %v", h.called, tt.wantCalled)
			}
			if tt.wantCalled && (h.source != "telegram" || h.body != body) {
				t.Errorf("handler got source=%q body=%q", h.source, h.body)
			}
		})
	}
}

func TestWebhookDispatcher_Unregistered(t *testing.T) {
	t.Parallel()

	d := NewWebhookDispatcher(testLogger(), nil)
	rec := serveWebhook(t, d, "unknown", "{}", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no handler registered") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestWebhookDispatcher_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	d := NewWebhookDispatcher(testLogger(), nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/telegram", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestWebhookDispatcher_RegisterUnregister(t *testing.T) {
	t.Parallel()

	d := NewWebhookDispatcher(testLogger(), nil)
	d.Register("telegram", &mockWebhookHandler{}, "")
	d.Register("other", &mockWebhookHandler{}, "")
	if got := d.Sources(); got != 2 {
		t.Fatalf("Sources = %d, want 2", got)
	}
	d.Unregister("other")
	if got := d.Sources(); got != 1 {
		t.Fatalf("Sources = %d, want 1", got)
	}
}

func TestWebhookDispatcher_Metrics(t *testing.T) {
	t.Parallel()

	d := NewWebhookDispatcher(testLogger(), nil)
	d.metrics = NewMetrics(prometheus.NewRegistry())
	d.Register("telegram", &mockWebhookHandler{}, "s")

	serveWebhook(t, d, "telegram", "{}", signPayload("{}", "s"))
	serveWebhook(t, d, "telegram", "{}", "sha256=bad")
	serveWebhook(t, d, "nobody", "{}", "")

	for _, c := range []struct{ source, result string }{
		{"telegram", "ok"},
		{"telegram", "rejected"},
		{"nobody", "unregistered"},
	} {
		if got := testutil.ToFloat64(d.metrics.webhooks.WithLabelValues(c.source, c.result)); got != 1 {
			t.Errorf("webhooks{%s,%s} = %v, want 1", c.source, c.result, got)
		}
	}
}

func TestValidateHMAC(t *testing.T) {
	t.Parallel()

	body := []byte("payload")
	if !validateHMAC(body, signPayload("payload", "k"), "k") {
		t.Error("valid signature rejected")
	}
	if validateHMAC(body, signPayload("payload", "k"), "other") {
		t.Error("signature with wrong key accepted")
	}
	if validateHMAC(body, "", "k") {
		t.Error("empty signature accepted")
	}
}
