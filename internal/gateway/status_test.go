package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth_Starting(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	rec := httptest.NewRecorder()
	g.handleHealth()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "starting" {
		t.Errorf("Status = %q", resp.Status)
	}
}

func TestHealth_CountsChannels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, AuthConfig{BearerToken: testToken})
	for _, target := range []string{"user1", "chat-2"} {
		if _, err := env.manager.EnsureChannel(t.Context(), target); err != nil {
			t.Fatal(err)
		}
	}

	resp := decodeBody[HealthResponse](t, env.do(t, http.MethodGet, "/health", nil))
	if resp.Status != "ok" || resp.Channels != 2 {
		t.Errorf("health = %+v", resp)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, AuthConfig{BearerToken: testToken})
	env.gateway.dispatcher.Register("telegram", &mockWebhookHandler{}, "")
	if _, err := env.manager.EnsureChannel(t.Context(), "user1"); err != nil {
		t.Fatal(err)
	}
	dialHub(t, env)
	waitFor(t, func() bool { return env.gateway.hub.Clients() == 1 })

	resp := decodeBody[StatusResponse](t, env.do(t, http.MethodGet, "/status", nil))
	want := StatusResponse{
		Channels:       1,
		Clients:        1,
		WebhookSources: 1,
		MessageLog:     true,
	}
	resp.Uptime = 0
	if resp != want {
		t.Errorf("status = %+v, want %+v", resp, want)
	}
}
