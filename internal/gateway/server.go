package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.middleware)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	// Webhooks carry their own per-source authentication.
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	// Client endpoints: auth required, not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/status", g.handleStatus())
			r.Handle("/ws", g.hub)
			r.Route("/api", func(r chi.Router) {
				r.Get("/channels", g.handleListChannels())
				r.Route("/channels/{id}", func(r chi.Router) {
					r.Get("/", g.handleGetChannel())
					r.Put("/", g.handleOpenChannel())
					r.Delete("/", g.handleCloseChannel())
					r.Get("/messages", g.handleListMessages())
					r.Post("/messages", g.handleSendMessage())
				})
				r.Get("/modules", g.handleListModules())
				r.Get("/config", g.handleGetConfig())
			})
			if g.config.MCP.enabled() {
				r.Handle("/mcp", g.newMCPHandler())
			}
		})
	}

	return r
}
