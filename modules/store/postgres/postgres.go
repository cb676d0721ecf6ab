// Package postgres implements the store.postgres module: the message log
// on PostgreSQL through github.com/lib/pq.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/store"
	"gopkg.in/yaml.v3"
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

// Module records relayed messages in PostgreSQL.
type Module struct {
	config   Config
	appCtx   *core.AppContext
	logger   *slog.Logger
	log      *Log
	recorder *store.Recorder
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.postgres",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("postgres: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The configuration is checked
// before connecting so a missing DSN fails fast.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()
	log, err := Open(connectCtx, m.config.DSN, m.config.MaxOpenConns)
	if err != nil {
		return err
	}
	m.log = log

	if err := store.Register(ctx, m.log, m.config.Retention); err != nil {
		return err
	}

	m.logger.Info("postgres message log provisioned", "retention", m.config.Retention.Retention)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter.
func (m *Module) Start() error {
	rec, err := store.Attach(m.appCtx, m.log, m.logger)
	if err != nil {
		return err
	}
	m.recorder = rec
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.recorder != nil {
		m.recorder.Close()
	}
	if m.log != nil {
		return m.log.Close()
	}
	return nil
}
