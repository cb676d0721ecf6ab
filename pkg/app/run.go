// Package app provides the shared entry point for the tgrelay commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/tgrelay/internal/config"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/security"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides both the configured and the default data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Instance is a loaded, provisioned application that has not been started.
type Instance struct {
	App        *core.App
	Context    *core.AppContext
	Logger     *slog.Logger
	ConfigPath string
	Modules    []string
}

// Load resolves and validates the configuration, builds the logger and the
// shared services, then configures, provisions and validates every module.
func Load(params RunParams) (*Instance, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	logger := NewLogger(params.LogOutput, params.LogLevel, redactor)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.ServiceName, redactor)
	appCtx.RegisterService("config.path", cfgPath)
	shared := registerShared(appCtx, logger)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}

	// Dispatch starts after every module so the jobs registered during
	// Provision are scheduled, and stops first.
	application.AppendModule(shared)

	return &Instance{
		App:        application,
		Context:    appCtx,
		Logger:     logger,
		ConfigPath: cfgPath,
		Modules:    ids,
	}, nil
}

// Run loads the configuration, starts all modules and blocks until ctx is
// cancelled, then stops them in reverse order.
func Run(ctx context.Context, params RunParams) error {
	inst, err := Load(params)
	if err != nil {
		return err
	}

	inst.Logger.Info("tgrelay starting",
		"version", params.Version,
		"commit", params.Commit,
		"config", inst.ConfigPath,
		"modules", len(inst.Modules),
	)
	return inst.App.Run(ctx)
}

// NewLogger builds the root text logger. Every record passes through
// redactor so the bot token and credentials never reach the output.
func NewLogger(w io.Writer, level slog.Level, redactor *security.Redactor) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/tgrelay/tgrelay.yaml → ~/.config/tgrelay/tgrelay.yaml → ./tgrelay.yaml
func ResolveConfigPath() (string, error) {
	candidates := ConfigCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// ConfigCandidates lists the config locations ResolveConfigPath checks, in
// order. The first one is where `tgrelay init` writes by default.
func ConfigCandidates() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "tgrelay", "tgrelay.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "tgrelay", "tgrelay.yaml"))
	}
	return append(candidates, "tgrelay.yaml")
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/tgrelay if set, otherwise ~/.local/share/tgrelay.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "tgrelay")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tgrelay")
}
