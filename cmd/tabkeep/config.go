package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage tabkeep configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/tabkeep/config.yaml (if set)
  2. ~/.config/tabkeep/config.yaml

Environment variables can override config file settings using the TABKEEP_ prefix:
  TABKEEP_LISTEN_ADDR=127.0.0.1:3100
  TABKEEP_SNAPSHOTS_MAX_SIZE=100MiB
  TABKEEP_DAEMON_AUTO_START=false

Settings changed at runtime (save path, profile filter) live in the
registry database; see 'tabkeep settings'.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration from file, environment and defaults.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configEnvVars lists the environment overrides shown by 'config show'.
var configEnvVars = []string{
	"TABKEEP_LISTEN_ADDR",
	"TABKEEP_DATA_DIR",
	"TABKEEP_SNAPSHOTS_ROOT",
	"TABKEEP_SNAPSHOTS_MAX_SIZE",
	"TABKEEP_SNAPSHOTS_MIN_SIZE",
	"TABKEEP_SNAPSHOTS_USE_TRASH",
	"TABKEEP_PROFILES_DEFAULT_FILTER",
	"TABKEEP_MANIFEST_ENABLED",
	"TABKEEP_MANIFEST_PATH",
	"TABKEEP_MANIFEST_RETENTION_DAYS",
	"TABKEEP_LOGGING_LEVEL",
	"TABKEEP_DAEMON_AUTO_START",
	"TABKEEP_DAEMON_BINARY_PATH",
}

// runConfigShow displays the current configuration.
func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg := currentConfig()

	path := cfgFile
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file: %s\n\n", path)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	out, err := yaml.Marshal(configView(cfg))
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Print(string(out))

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	anyOverrides := false
	for _, name := range configEnvVars {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// configView flattens the effective configuration for display, resolving
// derived paths.
func configView(cfg *config.Config) map[string]any {
	return map[string]any{
		"listen_addr": cfg.ListenAddr,
		"data_dir":    cfg.DataDir,
		"snapshots": map[string]any{
			"root":      cfg.Snapshots.Root,
			"max_size":  cfg.Snapshots.MaxSize,
			"min_size":  cfg.Snapshots.MinSize,
			"use_trash": cfg.Snapshots.UseTrash,
		},
		"profiles": map[string]any{
			"default_filter": cfg.Profiles.DefaultFilter,
		},
		"manifest": map[string]any{
			"enabled":        cfg.Manifest.Enabled,
			"path":           cfg.Manifest.Path,
			"retention_days": cfg.Manifest.RetentionDays,
		},
		"logging": map[string]any{
			"level":      cfg.Logging.Level,
			"path":       cfg.Logging.Path,
			"components": cfg.Logging.Components,
		},
		"daemon": map[string]any{
			"auto_start":  cfg.Daemon.AutoStart,
			"binary_path": cfg.Daemon.BinaryPath,
			"pid_path":    cfg.PIDPath(),
			"db_path":     cfg.DBPath(),
		},
	}
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(_ *cobra.Command, _ []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath) //nolint:gosec // user-chosen editor
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'tabkeep config edit' to modify it.")
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
