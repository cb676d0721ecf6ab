// Package gateway provides the HTTP side of the relay: health and metrics,
// the Telegram webhook endpoint, a websocket hub for channel clients, an
// authenticated REST API and an MCP endpoint. It binds to loopback by
// default and follows the module system pattern.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/config"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/relay"
	"github.com/flemzord/tgrelay/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxSendBody         = 1 << 20
)

// handleListChannels returns all open channels as JSON.
func (g *Gateway) handleListChannels() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		targets := g.relays.Channels()
		slices.Sort(targets)

		out := make([]channelJSON, 0, len(targets))
		for _, target := range targets {
			if r, ok := g.relays.Channel(target); ok {
				out = append(out, viewChannel(r))
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetChannel returns one channel.
func (g *Gateway) handleGetChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, ok := g.relays.Channel(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, channel.ErrNoChannel)
			return
		}
		writeJSON(w, http.StatusOK, viewChannel(rel))
	}
}

// handleOpenChannel opens (or returns) the channel for the target in the URL.
func (g *Gateway) handleOpenChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, err := g.relays.EnsureChannel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, viewChannel(rel))
	}
}

// handleCloseChannel closes a channel.
func (g *Gateway) handleCloseChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.relays.CloseChannel(chi.URLParam(r, "id")); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListMessages returns the logged history of a channel.
func (g *Gateway) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.history == nil {
			http.Error(w, "message log not enabled", http.StatusServiceUnavailable)
			return
		}

		limit := defaultHistoryLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		records, err := g.history.List(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			g.logger.Error("list messages failed", "error", err)
			http.Error(w, "failed to list messages", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []store.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// handleSendMessage sends a message, opening the channel if needed.
func (g *Gateway) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSendBody)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		rel, err := g.relays.EnsureChannel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		token, err := rel.Channel().SendMessage(r.Context(), req.parts())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, SendMessageResult{Token: token})
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetConfig returns the running config file with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configPath == "" {
			http.Error(w, "config path not set", http.StatusServiceUnavailable)
			return
		}

		cfg, err := config.Load(g.configPath)
		if err != nil {
			http.Error(w, "failed to load config", http.StatusInternalServerError)
			return
		}

		modules := make(map[string]any, len(cfg.Modules))
		for id, node := range cfg.Modules {
			var v any
			if err := node.Decode(&v); err != nil {
				http.Error(w, "failed to parse config", http.StatusInternalServerError)
				return
			}
			if m, ok := v.(map[string]any); ok {
				g.redactor.RedactMap(m)
			}
			modules[id] = v
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"version":  cfg.Version,
			"data_dir": cfg.DataDir,
			"modules":  modules,
		})
	}
}

// statusFor maps relay and channel errors to HTTP status codes.
func statusFor(err error) int {
	var sendErr *relay.SendError
	switch {
	case errors.Is(err, relay.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, channel.ErrNoChannel):
		return http.StatusNotFound
	case errors.Is(err, channel.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, channel.ErrClosed), errors.Is(err, channel.ErrNotAttached),
		errors.Is(err, relay.ErrClosed):
		return http.StatusConflict
	case errors.As(err, &sendErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
