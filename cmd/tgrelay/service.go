package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/flemzord/tgrelay/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts app.Run to the service manager's Start/Stop callbacks.
type program struct {
	params app.RunParams
	logger service.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		err := app.Run(ctx, p.params)
		if err != nil && ctx.Err() == nil && p.logger != nil {
			_ = p.logger.Error(err)
		}
		done <- err
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

// serviceConfig describes the installed unit. The config path is made
// absolute since service managers do not start in the caller's directory.
func serviceConfig(flags runFlags, user bool) (*service.Config, error) {
	args := []string{"service", "run"}
	if flags.configPath != "" {
		abs, err := filepath.Abs(flags.configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if flags.dataDir != "" {
		abs, err := filepath.Abs(flags.dataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	if flags.logLevel != "" {
		args = append(args, "--log-level", flags.logLevel)
	}

	cfg := &service.Config{
		Name:        "tgrelay",
		DisplayName: "tgrelay",
		Description: "Relays Telegram conversations into the telephony channel framework.",
		Arguments:   args,
		Option:      service.KeyValue{},
	}
	if user {
		cfg.Option["UserService"] = true
	}
	return cfg, nil
}

func statusString(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func serviceCmd() *cobra.Command {
	var (
		flags runFlags
		user  bool
	)

	newService := func() (service.Service, *program, error) {
		params, err := flags.params()
		if err != nil {
			return nil, nil, err
		}
		cfg, err := serviceConfig(flags, user)
		if err != nil {
			return nil, nil, err
		}
		prg := &program{params: params}
		svc, err := service.New(prg, cfg)
		if err != nil {
			return nil, nil, err
		}
		return svc, prg, nil
	}

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage tgrelay as a system service",
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Override the data directory")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&user, "user", false, "Install as a per-user service")

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the tgrelay service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, _, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the tgrelay service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return err
			}
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "not installed")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusString(st))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, prg, err := newService()
			if err != nil {
				return err
			}
			if logger, err := svc.Logger(nil); err == nil {
				prg.logger = logger
			}
			return svc.Run()
		},
	})

	return cmd
}
