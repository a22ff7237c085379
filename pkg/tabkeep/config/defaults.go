// Package config provides configuration management for tabkeep.
package config

// Default configuration values for tabkeep.
const (
	// DefaultListenAddr is the local address the registry daemon serves on.
	DefaultListenAddr = "127.0.0.1:3000"

	// DefaultMaxSnapshotSize is the capture-size ceiling.
	DefaultMaxSnapshotSize = "50MiB"

	// DefaultMinSnapshotSize rejects near-empty captures (page not loaded).
	DefaultMinSnapshotSize = "1KiB"

	// DefaultProfileFilter is the list filter used when none is persisted.
	DefaultProfileFilter = "active"

	// DefaultConfigDir is the default configuration directory path.
	DefaultConfigDir = "~/.config/tabkeep"

	// DefaultManifestDir is the default directory for manifest files.
	DefaultManifestDir = "~/.config/tabkeep/.manifest"

	// DefaultRetentionDays is the default number of days to retain manifests.
	DefaultRetentionDays = 30
)
