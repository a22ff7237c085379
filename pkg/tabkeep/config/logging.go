package config

import (
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// Rotation converts the rotation settings. An empty or unparsable max_size
// falls back to the logging default.
func (r RotationConfig) Rotation() logging.RotationConfig {
	out := logging.DefaultRotationConfig()
	if size, err := types.ParseSize(r.MaxSize); err == nil && size > 0 {
		out.MaxSize = size
	}
	out.MaxAge = r.MaxAge
	out.MaxBackups = r.MaxBackups
	out.Daily = r.Daily
	return out
}

// Options returns the logging.Config for these settings. consoleLevel
// mirrors log lines to stderr when not empty.
func (l LoggingConfig) Options(consoleLevel string) logging.Config {
	return logging.Config{
		Level:        l.Level,
		Path:         l.Path,
		Rotation:     l.Rotation.Rotation(),
		Components:   l.Components,
		ConsoleLevel: consoleLevel,
	}
}
