package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

func TestLoad_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}

	if cfg.Snapshots.Root != DefaultSnapshotRoot() {
		t.Errorf("Snapshots.Root = %q, want %q", cfg.Snapshots.Root, DefaultSnapshotRoot())
	}

	if cfg.Snapshots.UseTrash {
		t.Error("Snapshots.UseTrash = true, want false")
	}

	if cfg.Profiles.DefaultFilter != DefaultProfileFilter {
		t.Errorf("Profiles.DefaultFilter = %q, want %q", cfg.Profiles.DefaultFilter, DefaultProfileFilter)
	}

	if !cfg.Manifest.Enabled {
		t.Error("Manifest.Enabled = false, want true")
	}

	if cfg.Manifest.RetentionDays != DefaultRetentionDays {
		t.Errorf("Manifest.RetentionDays = %d, want %d", cfg.Manifest.RetentionDays, DefaultRetentionDays)
	}

	minSize, maxSize, err := cfg.SizeLimits()
	if err != nil {
		t.Fatalf("SizeLimits() error = %v", err)
	}
	if maxSize != 50*types.MiB {
		t.Errorf("max size = %d, want %d", maxSize, 50*types.MiB)
	}
	if minSize != types.KiB {
		t.Errorf("min size = %d, want %d", minSize, types.KiB)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "tabkeep")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
listen_addr: 127.0.0.1:4100
snapshots:
  root: ~/captures
  max_size: 10MB
  min_size: 2KB
  use_trash: true
profiles:
  default_filter: all
manifest:
  enabled: false
  path: /custom/manifest
  retention_days: 7
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:4100" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, "127.0.0.1:4100")
	}

	if cfg.Snapshots.Root != filepath.Join(tempDir, "captures") {
		t.Errorf("Snapshots.Root = %q, want %q", cfg.Snapshots.Root, filepath.Join(tempDir, "captures"))
	}

	if !cfg.Snapshots.UseTrash {
		t.Error("Snapshots.UseTrash = false, want true")
	}

	if cfg.Profiles.DefaultFilter != "all" {
		t.Errorf("Profiles.DefaultFilter = %q, want %q", cfg.Profiles.DefaultFilter, "all")
	}

	if cfg.Manifest.Enabled {
		t.Error("Manifest.Enabled = true, want false")
	}

	if cfg.Manifest.Path != "/custom/manifest" {
		t.Errorf("Manifest.Path = %q, want %q", cfg.Manifest.Path, "/custom/manifest")
	}

	minSize, maxSize, err := cfg.SizeLimits()
	if err != nil {
		t.Fatalf("SizeLimits() error = %v", err)
	}
	if maxSize != 10*types.MiB || minSize != 2*types.KiB {
		t.Errorf("SizeLimits() = (%d, %d), want (%d, %d)", minSize, maxSize, 2*types.KiB, 10*types.MiB)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	configPath := filepath.Join(tempDir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte("listen_addr: 127.0.0.1:5000\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:5000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, "127.0.0.1:5000")
	}
	if cfg.BaseURL() != "http://127.0.0.1:5000" {
		t.Errorf("BaseURL() = %q", cfg.BaseURL())
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	tempDir := t.TempDir()
	xdgConfigDir := filepath.Join(tempDir, "xdg-config", "tabkeep")
	if err := os.MkdirAll(xdgConfigDir, 0o755); err != nil {
		t.Fatalf("failed to create XDG config dir: %v", err)
	}

	configPath := filepath.Join(xdgConfigDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("listen_addr: 127.0.0.1:3999"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg-config"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:3999" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, "127.0.0.1:3999")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("TABKEEP_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("TABKEEP_SNAPSHOTS_MAX_SIZE", "5MB")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, "127.0.0.1:9000")
	}
	if cfg.Snapshots.MaxSize != "5MB" {
		t.Errorf("Snapshots.MaxSize = %q, want %q", cfg.Snapshots.MaxSize, "5MB")
	}
}

func TestSizeLimits_Invalid(t *testing.T) {
	cfg := &Config{}
	cfg.Snapshots.MaxSize = "1KB"
	cfg.Snapshots.MinSize = "2KB"
	if _, _, err := cfg.SizeLimits(); err == nil {
		t.Error("SizeLimits() with min > max should fail")
	}

	cfg.Snapshots.MaxSize = "lots"
	if _, _, err := cfg.SizeLimits(); err == nil {
		t.Error("SizeLimits() with unparsable max should fail")
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}

		expected := "/custom/config/tabkeep"
		if dir != expected {
			t.Errorf("ConfigDir() = %q, want %q", dir, expected)
		}
	})

	t.Run("uses HOME/.config when XDG_CONFIG_HOME not set", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("HOME", tempDir)
		t.Setenv("XDG_CONFIG_HOME", "")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}

		expected := filepath.Join(tempDir, ".config", "tabkeep")
		if dir != expected {
			t.Errorf("ConfigDir() = %q, want %q", dir, expected)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	t.Run("creates default config file", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("HOME", tempDir)
		t.Setenv("XDG_CONFIG_HOME", "")

		if err := WriteDefault(); err != nil {
			t.Fatalf("WriteDefault() error = %v", err)
		}

		configPath := filepath.Join(tempDir, ".config", "tabkeep", "config.yaml")
		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file not created: %v", err)
		}

		// The written file must load back cleanly.
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() after WriteDefault() error = %v", err)
		}
		if cfg.ListenAddr != DefaultListenAddr {
			t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
		}
	})

	t.Run("does not overwrite existing config", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("HOME", tempDir)
		t.Setenv("XDG_CONFIG_HOME", "")

		configDir := filepath.Join(tempDir, ".config", "tabkeep")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}

		configPath := filepath.Join(configDir, "config.yaml")
		existingContent := "# existing config\nlisten_addr: 127.0.0.1:1"
		if err := os.WriteFile(configPath, []byte(existingContent), 0o644); err != nil {
			t.Fatalf("failed to write existing config: %v", err)
		}

		if err := WriteDefault(); err != nil {
			t.Fatalf("WriteDefault() error = %v", err)
		}

		content, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("failed to read config file: %v", err)
		}

		if string(content) != existingContent {
			t.Errorf("config file was overwritten: got %q, want %q", string(content), existingContent)
		}
	})
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "expands tilde", input: "~/captures", want: filepath.Join(homeDir, "captures")},
		{name: "leaves absolute path unchanged", input: "/srv/tabkeep", want: "/srv/tabkeep"},
		{name: "leaves relative path unchanged", input: "captures", want: "captures"},
		{name: "handles tilde only", input: "~", want: homeDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	if filepath.Base(DataDir()) != "tabkeep" {
		t.Errorf("DataDir() = %q, want path ending in 'tabkeep'", DataDir())
	}
	if filepath.Base(StateDir()) != "tabkeep" {
		t.Errorf("StateDir() = %q, want path ending in 'tabkeep'", StateDir())
	}
	if filepath.Dir(DefaultSnapshotRoot()) != DataDir() {
		t.Errorf("DefaultSnapshotRoot() = %q, want it under %q", DefaultSnapshotRoot(), DataDir())
	}
	if filepath.Dir(DefaultPIDPath()) != DataDir() {
		t.Errorf("DefaultPIDPath() = %q, want it under %q", DefaultPIDPath(), DataDir())
	}

	cfg := &Config{DataDir: "/data"}
	if cfg.DBPath() != "/data/registry.db" {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.PIDPath() != "/data/tabkeepd.pid" {
		t.Errorf("PIDPath() = %q", cfg.PIDPath())
	}
	cfg.Daemon.PIDPath = "/run/tabkeepd.pid"
	if cfg.PIDPath() != "/run/tabkeepd.pid" {
		t.Errorf("PIDPath() = %q, want configured path", cfg.PIDPath())
	}
}

func TestLoad_LoggingDefaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Logging.Rotation.MaxSize != "10MB" {
		t.Errorf("Logging.Rotation.MaxSize = %q, want %q", cfg.Logging.Rotation.MaxSize, "10MB")
	}

	if cfg.Logging.Rotation.MaxBackups != 5 {
		t.Errorf("Logging.Rotation.MaxBackups = %d, want %d", cfg.Logging.Rotation.MaxBackups, 5)
	}

	expectedComponents := map[string]string{
		"daemon":  "info",
		"watcher": "warn",
		"store":   "warn",
	}
	for component, level := range expectedComponents {
		if cfg.Logging.Components[component] != level {
			t.Errorf("Logging.Components[%q] = %q, want %q", component, cfg.Logging.Components[component], level)
		}
	}
}

func TestDefaultBinaryPath(t *testing.T) {
	gobin := t.TempDir()
	t.Setenv("GOBIN", gobin)
	t.Setenv("GOPATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	if got := DefaultBinaryPath(); got != "" {
		t.Errorf("DefaultBinaryPath() = %q, want empty", got)
	}

	bin := filepath.Join(gobin, "tabkeepd")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := DefaultBinaryPath(); got != bin {
		t.Errorf("DefaultBinaryPath() = %q, want %q", got, bin)
	}
}
