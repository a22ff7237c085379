// Package logging is the component-scoped logger shared by tabkeepd and the
// tabkeep CLI. Both write to one rotating file under the XDG state dir; the
// CLI can additionally mirror to stderr.
//
//	if err := logging.Init(cfg.Logging.Options("")); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	log := logging.Get("pageindex")
//	log.Info("snapshot recorded", "id", rec.ID)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a charmbracelet/log level.
type Level = log.Level

const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// ErrInvalidLevel is returned for a level name ParseLevel does not know.
var ErrInvalidLevel = errors.New("invalid log level")

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel reads a level name, ignoring case.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Config configures Init.
type Config struct {
	Level string
	// Path of the log file; empty uses DefaultLogPath.
	Path     string
	Rotation RotationConfig
	// Components overrides Level per component, e.g. {"store": "warn"}.
	Components map[string]string
	// ConsoleLevel mirrors records at or above it to stderr. Empty disables
	// the mirror.
	ConsoleLevel string
}

// Logger writes records tagged with one component name.
type Logger struct {
	component string
	file      *log.Logger
	console   *log.Logger // nil unless the mirror is on
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

func (l *Logger) log(level Level, msg string, args []interface{}) {
	l.file.Log(level, msg, args...)
	if l.console != nil {
		l.console.Log(level, msg, args...)
	}
}

// Component returns the name the logger was fetched with.
func (l *Logger) Component() string {
	return l.component
}

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...interface{}) *Logger {
	out := &Logger{component: l.component, file: l.file.With(args...)}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

type registry struct {
	mu         sync.RWMutex
	writer     *RotatingWriter // nil until Init
	level      Level
	components map[string]Level
	console    *Level
	loggers    map[string]*Logger
}

var global = &registry{level: LevelInfo}

// Init opens the log file and rebuilds every cached logger against it. It
// may be called again to switch files; loggers handed out earlier keep the
// destination they were built with, so callers re-Get after Init.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	components := make(map[string]Level, len(cfg.Components))
	for name, s := range cfg.Components {
		l, err := ParseLevel(s)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", name, err)
		}
		components[name] = l
	}
	var console *Level
	if cfg.ConsoleLevel != "" {
		l, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		console = &l
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	old := global.writer
	global.writer = writer
	global.level = level
	global.components = components
	global.console = console
	for name := range global.loggers {
		global.loggers[name] = global.build(name)
	}

	if old != nil {
		if err := old.Close(); err != nil {
			return fmt.Errorf("closing previous log file: %w", err)
		}
	}
	return nil
}

// Get returns the logger for component, creating it on first use. Before
// Init it discards everything.
func Get(component string) *Logger {
	global.mu.RLock()
	l, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return l
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if l, ok := global.loggers[component]; ok {
		return l
	}
	if global.loggers == nil {
		global.loggers = make(map[string]*Logger)
	}
	l = global.build(component)
	global.loggers[component] = l
	return l
}

// build must be called with r.mu held.
func (r *registry) build(component string) *Logger {
	level := r.level
	if l, ok := r.components[component]; ok {
		level = l
	}

	if r.writer == nil {
		return &Logger{
			component: component,
			file:      log.NewWithOptions(io.Discard, log.Options{Level: level, Prefix: component}),
		}
	}

	l := &Logger{
		component: component,
		file: log.NewWithOptions(r.writer, log.Options{
			Level:           level,
			Prefix:          component,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
		}),
	}
	if r.console != nil {
		l.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           *r.console,
			Prefix:          component,
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		})
	}
	return l
}

// Close flushes the log file and drops every cached logger; later Gets
// discard until the next Init.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	w := global.writer
	global.writer = nil
	global.level = LevelInfo
	global.components = nil
	global.console = nil
	global.loggers = nil
	if w == nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/tabkeep/tabkeep.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "tabkeep", "tabkeep.log")
}
