// Package main is the entry point for the tgrelay CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tgrelay",
		Short:         "Relay Telegram conversations into a telephony channel framework",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tgrelay %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

// runFlags are shared by `start` and `service run`.
type runFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Override the data directory")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func (f *runFlags) params() (app.RunParams, error) {
	level, err := parseLogLevel(f.logLevel)
	if err != nil {
		return app.RunParams{}, err
	}
	return app.RunParams{
		ConfigPath: f.configPath,
		DataDir:    f.dataDir,
		LogLevel:   level,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func startCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start tgrelay with all configured modules",
		RunE: func(_ *cobra.Command, _ []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, params)
		},
	}
	flags.register(cmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and provision every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.Load(app.RunParams{
				ConfigPath: args[0],
				LogLevel:   slog.LevelWarn,
				LogOutput:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer inst.App.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(inst.Modules))
			for _, id := range inst.Modules {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}
