// Package main is the tabkeep registry daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tabkeep/pkg/daemon"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
)

// Set via ldflags.
var version = "dev"

func main() {
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:           "tabkeepd",
		Short:         "Profile and snapshot registry daemon",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgFile, verbose)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tabkeep/config.yaml)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "mirror debug logs to stderr")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tabkeepd: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgFile string, verbose bool) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return err
	}

	console := "warn"
	if verbose {
		console = "debug"
	}
	if err := logging.Init(cfg.Logging.Options(console)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	log := logging.Get("daemon")

	pidPath := cfg.PIDPath()
	statusPath := daemon.StatusPath(pidPath)

	if daemon.IsDaemonRunning(pidPath) {
		return daemon.ErrDaemonAlreadyRunning
	}
	if err := daemon.RecoverFromStaleDaemon(pidPath, statusPath, cfg.DBPath()); err != nil {
		return err
	}

	d, err := daemon.Open(ctx, cfg, version)
	if err != nil {
		if werr := daemon.WriteStatusError(statusPath, err); werr != nil {
			log.Warn("failed to write status file", "error", werr)
		}
		log.Error("daemon failed to start", "error", err)
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}()

	if err := daemon.WritePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidPath); err != nil {
			log.Warn("failed to remove PID file", "error", err)
		}
		if err := daemon.RemoveStatus(statusPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove status file", "error", err)
		}
	}()

	if err := daemon.WriteStatusReady(statusPath, d.Addr()); err != nil {
		log.Warn("failed to write status file", "error", err)
	}

	log.Info("tabkeepd started", "version", version, "addr", d.Addr(), "pid", os.Getpid())
	if err := d.Run(ctx); err != nil {
		return err
	}
	log.Info("tabkeepd stopped")
	return nil
}
