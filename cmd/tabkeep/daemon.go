package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tabkeep/pkg/client"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the tabkeepd daemon",
	Long: `Manage the tabkeepd registry daemon.

The daemon owns the registry database and the snapshot directory. The
browser extension and this CLI both talk to it over local HTTP.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tabkeepd daemon",
	Long:  `Start the tabkeepd daemon in the background.`,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tabkeepd daemon",
	Long:  `Stop the tabkeepd daemon gracefully.`,
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the tabkeepd daemon",
	Long:  `Stop and start the tabkeepd daemon.`,
	RunE:  runDaemonRestart,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show the current status of the tabkeepd daemon.`,
	RunE:  runDaemonStatus,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
}

func runDaemonStart(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	if client.IsDaemonRunning(cfg.PIDPath()) {
		printInfo("Daemon already running")
		return nil
	}

	printVerbose("starting daemon...")
	addr, err := client.StartDaemon(cmd.Context(), daemonPaths(cfg))
	if err != nil {
		return err
	}
	printInfo("Daemon started on %s", addr)
	return nil
}

func runDaemonStop(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	printVerbose("checking PID file: %s", cfg.PIDPath())

	if !client.IsDaemonRunning(cfg.PIDPath()) {
		return errDaemonDown
	}
	if err := client.StopDaemon(cmd.Context(), daemonPaths(cfg)); err != nil {
		return err
	}
	printInfo("Daemon stopped")
	return nil
}

func runDaemonRestart(cmd *cobra.Command, _ []string) error {
	addr, err := client.RestartDaemon(cmd.Context(), daemonPaths(currentConfig()))
	if err != nil {
		return err
	}
	printInfo("Daemon restarted on %s", addr)
	return nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()

	if !client.IsDaemonRunning(cfg.PIDPath()) {
		printInfo("Daemon status: not running")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	h, err := client.New(cfg.BaseURL()).Health(ctx)
	if err != nil {
		printInfo("Daemon status: running (but not responding)")
		printVerbose("health check failed: %v", err)
		return nil
	}

	printInfo("Daemon status: running")
	printInfo("  Address:    %s", cfg.ListenAddr)
	printInfo("  Version:    %s", h.Version)
	printInfo("  Uptime:     %s", formatDuration(h.Uptime()))
	printInfo("  Memory:     %s", types.FormatSize(int64(h.MemoryBytes)))
	printInfo("  Save path:  %s", h.SnapshotRoot)
	printInfo("  Profiles:   %d", h.Profiles)
	printInfo("  Snapshots:  %d (%s)", h.Snapshots, types.FormatSize(h.SnapshotBytes))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
