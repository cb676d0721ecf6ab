package gateway

import (
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "starting"
	Channels int    `json:"channels"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 once the relay manager is bound, 503 before.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.relays == nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "starting"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Channels: len(g.relays.Channels()),
		})
	}
}
