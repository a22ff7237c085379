package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// DaemonConfig configures the registry daemon process.
type DaemonConfig struct {
	AutoStart  bool   `mapstructure:"auto_start"`
	BinaryPath string `mapstructure:"binary_path"` // Path to tabkeepd (auto-discovered if empty)
	PIDPath    string `mapstructure:"pid_path"`
}

// SnapshotsConfig configures where and how page captures are stored.
type SnapshotsConfig struct {
	// Root is the initial snapshot root. Once a root is saved through the
	// API the persisted setting wins.
	Root     string `mapstructure:"root"`
	MaxSize  string `mapstructure:"max_size"`
	MinSize  string `mapstructure:"min_size"`
	UseTrash bool   `mapstructure:"use_trash"`
}

// ProfilesConfig configures profile list views.
type ProfilesConfig struct {
	DefaultFilter string `mapstructure:"default_filter"`
}

// Config represents the application configuration.
type Config struct {
	ListenAddr string          `mapstructure:"listen_addr"`
	DataDir    string          `mapstructure:"data_dir"`
	Snapshots  SnapshotsConfig `mapstructure:"snapshots"`
	Profiles   ProfilesConfig  `mapstructure:"profiles"`
	Manifest   struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"manifest"`
	Logging LoggingConfig `mapstructure:"logging"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
}

// SizeLimits parses the snapshot size limits.
func (c *Config) SizeLimits() (minSize, maxSize int64, err error) {
	maxSize, err = types.ParseSize(c.Snapshots.MaxSize)
	if err != nil {
		return 0, 0, fmt.Errorf("snapshots.max_size: %w", err)
	}
	minSize, err = types.ParseSize(c.Snapshots.MinSize)
	if err != nil {
		return 0, 0, fmt.Errorf("snapshots.min_size: %w", err)
	}
	if minSize > maxSize {
		return 0, 0, fmt.Errorf("snapshots.min_size (%s) exceeds snapshots.max_size (%s)",
			c.Snapshots.MinSize, c.Snapshots.MaxSize)
	}
	return minSize, maxSize, nil
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/tabkeep/config.yaml
//   - $HOME/.config/tabkeep/config.yaml
//
// Environment variables are prefixed with TABKEEP_ (e.g., TABKEEP_LISTEN_ADDR).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load but reads the given file when path
// is not empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "tabkeep"))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "tabkeep"))
	}

	v.SetEnvPrefix("TABKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	v.SetDefault("manifest.path", filepath.Join(homeDir, ".config", "tabkeep", ".manifest"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Manifest.Path, &cfg.Snapshots.Root, &cfg.DataDir} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("data_dir", DataDir())

	v.SetDefault("snapshots.root", DefaultSnapshotRoot())
	v.SetDefault("snapshots.max_size", DefaultMaxSnapshotSize)
	v.SetDefault("snapshots.min_size", DefaultMinSnapshotSize)
	v.SetDefault("snapshots.use_trash", false)

	v.SetDefault("profiles.default_filter", DefaultProfileFilter)

	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"daemon":    "info",
		"http":      "info",
		"watcher":   "warn",
		"store":     "warn",
		"pageindex": "info",
		"profile":   "info",
	})

	v.SetDefault("daemon.auto_start", true)
	v.SetDefault("daemon.pid_path", "") // Empty means use default XDG path
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "tabkeep"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "tabkeep"), nil
}

// ConfigPath returns the path of the config file inside ConfigDir.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ManifestDir returns the manifest directory path.
func ManifestDir() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, ".manifest"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	manifestDir, err := ManifestDir()
	if err != nil {
		return err
	}

	defaultConfig := fmt.Sprintf(`# tabkeep registry configuration

# Local address the registry daemon listens on
listen_addr: %s

# Database, pid and status files (empty means $XDG_DATA_HOME/tabkeep)
data_dir: ""

snapshots:
  # Initial directory for page captures. Changing the save path through
  # the extension or 'tabkeep save-path' overrides this value.
  root: %s
  # Captures larger than max_size or smaller than min_size are rejected
  max_size: %s
  min_size: %s
  # Move deleted captures to the system trash instead of removing them
  use_trash: false

profiles:
  # Default list filter: active (hide hidden profiles) or all
  default_filter: %s

# Operation history for deletions and cleanups
manifest:
  enabled: true
  path: %s
  retention_days: %d

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/tabkeep/tabkeep.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    daemon: info
    http: info
    watcher: warn
    store: warn

daemon:
  # Start tabkeepd automatically when running tabkeep commands
  auto_start: true
  # Path to the tabkeepd binary (empty means auto-discover)
  binary_path: ""
  # PID file path (empty means use default: $XDG_DATA_HOME/tabkeep/tabkeepd.pid)
  pid_path: ""
`, DefaultListenAddr, DefaultSnapshotRoot(), DefaultMaxSnapshotSize, DefaultMinSnapshotSize,
		DefaultProfileFilter, manifestDir, DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/tabkeep/ for database, pid and status files.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "tabkeep")
}

// StateDir returns $XDG_STATE_HOME/tabkeep/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "tabkeep")
}

// DefaultSnapshotRoot returns the default directory for page captures.
func DefaultSnapshotRoot() string {
	return filepath.Join(DataDir(), "snapshots")
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "tabkeepd.pid")
}

// DefaultDBPath returns the default database directory.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "registry.db")
}

// DBPath returns the database directory under the configured data dir.
func (c *Config) DBPath() string {
	if c.DataDir == "" {
		return DefaultDBPath()
	}
	return filepath.Join(c.DataDir, "registry.db")
}

// PIDPath returns the configured PID path or the default under the data dir.
func (c *Config) PIDPath() string {
	if c.Daemon.PIDPath != "" {
		return c.Daemon.PIDPath
	}
	if c.DataDir == "" {
		return DefaultPIDPath()
	}
	return filepath.Join(c.DataDir, "tabkeepd.pid")
}

// BaseURL returns the http URL of the daemon.
func (c *Config) BaseURL() string {
	return "http://" + c.ListenAddr
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// DefaultBinaryPath looks for an installed tabkeepd in GOBIN, GOPATH/bin
// and ~/go/bin, in that order. It returns "" if none exists.
func DefaultBinaryPath() string {
	var dirs []string
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		dirs = append(dirs, gobin)
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		for _, p := range filepath.SplitList(gopath) {
			dirs = append(dirs, filepath.Join(p, "bin"))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "go", "bin"))
	}

	for _, dir := range dirs {
		candidate := filepath.Join(dir, "tabkeepd")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
