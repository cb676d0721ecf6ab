package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime         int64 `json:"uptime_seconds"`
	Channels       int   `json:"channels"`
	PendingMedia   int   `json:"pending_media"`
	Clients        int   `json:"websocket_clients"`
	WebhookSources int   `json:"webhook_sources"`
	MessageLog     bool  `json:"message_log"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:         int64(time.Since(g.startedAt) / time.Second),
			WebhookSources: g.dispatcher.Sources(),
			MessageLog:     g.history != nil,
		}
		if g.hub != nil {
			resp.Clients = g.hub.Clients()
		}
		if g.relays != nil {
			for _, target := range g.relays.Channels() {
				resp.Channels++
				if r, ok := g.relays.Channel(target); ok {
					resp.PendingMedia += len(r.Pending())
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
