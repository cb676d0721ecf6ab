package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/relay"
	"github.com/flemzord/tgrelay/internal/security"
	"github.com/flemzord/tgrelay/internal/store"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Service names the gateway registers or consumes.
const (
	ServiceWebhookDispatcher = "gateway.webhook_dispatcher"
	ServiceMetricsRegistry   = "metrics.registry"
	ServiceConfigPath        = "config.path"
	serviceManager           = "relay.manager"
	serviceRelayMetrics      = "metrics.relay"
)

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Relays is the part of the relay manager the gateway drives.
type Relays interface {
	EnsureChannel(ctx context.Context, target string) (*relay.Relay, error)
	Channel(target string) (*relay.Relay, bool)
	Channels() []string
	CloseChannel(target string) error
	AddObserver(obs channel.Observer)
}

// History reads the message log.
type History interface {
	List(ctx context.Context, channel string, limit int) ([]store.Record, error)
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports
// it except for the webhook dispatcher type.
type Gateway struct {
	config     Config
	configPath string
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	metrics    *Metrics
	gatherer   prometheus.Gatherer
	dispatcher *WebhookDispatcher
	redactor   *security.Redactor
	hub        *Hub
	startedAt  time.Time

	// Resolved at Start() via the service registry.
	relays  Relays
	history History
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The webhook dispatcher is
// registered here so protocol modules can find it when they start.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger

	if reg, err := core.ServiceAs[*prometheus.Registry](ctx, ServiceMetricsRegistry); err == nil {
		g.metrics = NewMetrics(reg)
		g.gatherer = reg
	}

	g.redactor, _ = core.ServiceAs[*security.Redactor](ctx, security.ServiceName)
	if g.redactor == nil {
		g.redactor = security.NewRedactor()
	}
	g.redactor.AddLiteral(g.config.Auth.BearerToken)
	g.redactor.AddLiteral(g.config.Auth.BasicPass)

	secrets := make(map[string]string, len(g.config.Webhooks))
	for source, cfg := range g.config.Webhooks {
		if cfg.Secret != "" {
			secrets[source] = cfg.Secret
			g.redactor.AddLiteral(cfg.Secret)
			g.logger.Info("webhook source configured", "source", source)
		}
	}
	g.dispatcher = NewWebhookDispatcher(g.logger, secrets)
	g.dispatcher.metrics = g.metrics
	ctx.RegisterService(ServiceWebhookDispatcher, g.dispatcher)

	if path, err := core.ServiceAs[string](ctx, ServiceConfigPath); err == nil {
		g.configPath = path
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway: no auth configured, api and websocket endpoints are disabled")
	}
	return g.config.validate()
}

// Start implements core.Starter. It binds the relay manager and the
// optional message log, then starts the HTTP server.
func (g *Gateway) Start() error {
	relays, err := core.ServiceAs[Relays](g.appCtx, serviceManager)
	if err != nil {
		return fmt.Errorf("gateway: %w (is relay.manager loaded?)", err)
	}
	g.bind(relays)
	if h, err := core.ServiceAs[History](g.appCtx, store.ServiceName); err == nil {
		g.history = h
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// bind attaches the websocket hub to relays.
func (g *Gateway) bind(relays Relays) {
	g.relays = relays
	var cm ClientMetrics
	if m, err := core.ServiceAs[ClientMetrics](g.appCtx, serviceRelayMetrics); err == nil {
		cm = m
	}
	g.hub = NewHub(relays, g.config.WebSocket, g.logger, cm)
	relays.AddObserver(g.hub)
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	g.hub.Close()
	return g.server.Shutdown(shutdownCtx)
}

// Dispatcher returns the webhook dispatcher.
func (g *Gateway) Dispatcher() *WebhookDispatcher { return g.dispatcher }
