package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tabkeep/pkg/client"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tabkeep",
		Short: "Manage browser profiles and saved pages",
		Long: `tabkeep talks to the tabkeepd registry, which tracks browser profiles,
their open tabs and the pages saved from them as MHTML snapshots.

The daemon is started on demand unless daemon.auto_start is false.

Examples:
  tabkeep profiles                 # List visible profiles
  tabkeep profiles --all           # Include hidden profiles
  tabkeep pages -o json            # Saved pages as JSON
  tabkeep cleanup --dry-run        # Show orphaned records and files
  tabkeep cleanup -i               # Pick orphans to remove
  tabkeep save-path ~/Snapshots    # Move future saves to a new directory
  tabkeep daemon status            # Show daemon status`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initializeLogging,
	}
)

// appConfig is loaded by initializeLogging before any command runs.
var appConfig *config.Config

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tabkeep/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "pretty", "output format: "+formatList())
	rootCmd.PersistentFlags().StringVar(&templateStr, "template", "", "Go template for -o template")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-daemon", false, "never start the daemon automatically")

	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_daemon", rootCmd.PersistentFlags().Lookup("no-daemon"))
}

// initializeLogging loads the configuration, makes sure the XDG
// directories exist and starts file logging. It runs before every command.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.EnsureDataDir(); err != nil {
		return err
	}
	if err := config.EnsureStateDir(); err != nil {
		return err
	}

	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	console := ""
	if getVerbose() {
		console = "debug"
	}
	if err := logging.Init(cfg.Logging.Options(console)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { _ = logging.Close() }()
	return rootCmd.ExecuteContext(ctx)
}

// daemonPaths returns where the daemon binary and runtime files live.
func daemonPaths(cfg *config.Config) client.DaemonPaths {
	return client.DaemonPaths{
		Binary:     cfg.Daemon.BinaryPath,
		PID:        cfg.PIDPath(),
		ConfigFile: cfgFile,
		BaseURL:    cfg.BaseURL(),
	}
}

// maybeStartDaemon starts tabkeepd when auto start is enabled and it is not
// already running.
func maybeStartDaemon(ctx context.Context, cfg *config.Config) error {
	if !cfg.Daemon.AutoStart {
		return nil
	}
	if client.IsDaemonRunning(cfg.PIDPath()) {
		return nil
	}
	printVerbose("starting daemon")
	return client.EnsureDaemon(ctx, daemonPaths(cfg))
}

var errDaemonDown = errors.New("daemon is not running (start with: tabkeep daemon start)")

// connect returns a client for a daemon that answers, starting one if
// allowed.
func connect(ctx context.Context) (*client.Client, error) {
	cfg := currentConfig()
	c := client.New(cfg.BaseURL())
	if c.Ping(ctx) {
		return c, nil
	}
	if viper.GetBool("no_daemon") {
		return nil, errDaemonDown
	}
	if err := maybeStartDaemon(ctx, cfg); err != nil {
		logging.Get("cli").Warn("auto start failed", "error", err)
		return nil, fmt.Errorf("%w: %w", errDaemonDown, err)
	}
	if !c.Ping(ctx) {
		return nil, errDaemonDown
	}
	return c, nil
}

// currentConfig returns the loaded configuration, loading it if a command
// ran without the persistent hook.
func currentConfig() *config.Config {
	if appConfig != nil {
		return appConfig
	}
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		printVerbose("config load failed, using defaults: %v", err)
		v := viper.New()
		config.SetDefaults(v)
		cfg = &config.Config{}
		_ = v.Unmarshal(cfg)
	}
	appConfig = cfg
	return cfg
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
