package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/cron"
	"github.com/flemzord/tgrelay/internal/handle"
	"github.com/flemzord/tgrelay/internal/metrics"
	"github.com/flemzord/tgrelay/internal/protocol"
	"gopkg.in/yaml.v3"
)

// Service names used for cross-module discovery.
const (
	ServiceManager = "relay.manager"
	ServiceBus     = "bus"
	ServiceHandles = "handles"
	ServiceTimers  = "cron.scheduler"
	ServiceMetrics = "metrics.relay"
	ServiceClient  = "protocol.client"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ModuleConfig holds the relay.manager configuration.
type ModuleConfig struct {
	AutoCreate     *bool         `yaml:"auto_create"`
	TypingInterval time.Duration `yaml:"typing_interval"`
	Channels       []string      `yaml:"channels"`
}

func (c *ModuleConfig) defaults() {
	if c.AutoCreate == nil {
		v := true
		c.AutoCreate = &v
	}
	if c.TypingInterval == 0 {
		c.TypingInterval = protocol.LocalTypingRepeatInterval
	}
}

func (c *ModuleConfig) validate() error {
	if c.TypingInterval < time.Second || c.TypingInterval > time.Minute {
		return fmt.Errorf("relay: typing_interval must be 1s-1m, got %s", c.TypingInterval)
	}
	for _, target := range c.Channels {
		if !protocol.IsChatIdentifier(target) {
			if _, ok := protocol.IdentifierToUserID(target); !ok {
				return fmt.Errorf("relay: invalid channel identifier %q", target)
			}
		}
	}
	return nil
}

// Module wires a Manager into the application lifecycle.
type Module struct {
	config  ModuleConfig
	manager *Manager
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "relay.manager",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("relay: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. It needs the protocol client,
// which the channel module registers during its own Provision.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()

	client, err := core.ServiceAs[protocol.Client](ctx, ServiceClient)
	if err != nil {
		return fmt.Errorf("relay: %w (is a channel module loaded?)", err)
	}
	b, err := core.ServiceAs[*bus.Bus](ctx, ServiceBus)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	timers, err := core.ServiceAs[*cron.Scheduler](ctx, ServiceTimers)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	handles, err := core.ServiceAs[*handle.Registry](ctx, ServiceHandles)
	if err != nil {
		handles = handle.NewRegistry()
		ctx.RegisterService(ServiceHandles, handles)
	}

	cfg := ManagerConfig{
		Client:         client,
		Bus:            b,
		Handles:        handles,
		Timers:         timers,
		Logger:         ctx.Logger,
		AutoCreate:     *m.config.AutoCreate,
		TypingInterval: m.config.TypingInterval,
	}
	if rm, err := core.ServiceAs[*metrics.Relay](ctx, ServiceMetrics); err == nil {
		cfg.Metrics = rm
	}

	m.manager = NewManager(cfg)
	ctx.RegisterService(ServiceManager, m.manager)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. It subscribes to protocol events and
// opens the preconfigured channels.
func (m *Module) Start() error {
	m.manager.Start()
	for _, target := range m.config.Channels {
		if _, err := m.manager.EnsureChannel(context.Background(), target); err != nil {
			return fmt.Errorf("relay: open channel %s: %w", target, err)
		}
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.manager.Stop()
	return nil
}

// Manager returns the provisioned manager.
func (m *Module) Manager() *Manager { return m.manager }
