// Package sqlite implements the store.sqlite module: a persistent message
// log on modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

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

// Module records relayed messages in a SQLite database.
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
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = ctx.DataPath(defaultDBFile)
	}

	log, err := Open(context.Background(), m.config.Path, m.config.walEnabled(), m.config.BusyTimeout)
	if err != nil {
		return err
	}
	m.log = log

	if err := store.Register(ctx, m.log, m.config.Retention); err != nil {
		return err
	}

	m.logger.Info("sqlite message log provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"retention", m.config.Retention.Retention,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.log.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Start implements core.Starter. It starts recording channel notifications.
func (m *Module) Start() error {
	rec, err := store.Attach(m.appCtx, m.log, m.logger)
	if err != nil {
		return err
	}
	m.recorder = rec
	return nil
}

// Stop implements core.Stopper. Queued records are flushed before the
// database is closed.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite message log stopping")
	if m.recorder != nil {
		m.recorder.Close()
	}
	if m.log != nil {
		return m.log.Close()
	}
	return nil
}

// Log returns the message log.
func (m *Module) Log() *Log {
	return m.log
}
