package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig bounds the log file.
type RotationConfig struct {
	MaxSize    int64 // bytes; zero uses the default
	MaxAge     int   // days a rotated file is kept; zero keeps them
	MaxBackups int   // rotated files kept; zero keeps them
	Daily      bool  // start a new file on the first write of each day
}

// DefaultRotationConfig returns the rotation used when the config is silent.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 << 20,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// backupStamp names rotated files, e.g. tabkeep.2024-01-20-150405.000123.log.
const backupStamp = "2006-01-02-150405.000000"

// maxReopen bounds how often one write chases a file that keeps being
// rotated away by another process.
const maxReopen = 3

// RotatingWriter appends to a log file that tabkeepd and the CLI share.
// Every write holds an flock on the file, and a writer that finds the path
// rotated away by the other process reopens it first. Safe for concurrent
// use.
type RotatingWriter struct {
	path string
	cfg  RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
	day  time.Time // local midnight of the open file's mtime when opened
}

// NewRotatingWriter opens path for appending, creating its directory.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write appends p, rotating first when p would push the file past MaxSize
// or the day has changed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	defer w.unlock()
	if err := w.claim(); err != nil {
		return 0, err
	}

	if w.due(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
		if err := w.claim(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the file. Later writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := errors.Join(w.file.Sync(), w.file.Close())
	w.file = nil
	if err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	return nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat log file: %w", err), f.Close())
	}
	w.file = f
	w.size = info.Size()
	w.day = midnight(info.ModTime())
	return nil
}

// claim locks the file currently at w.path and refreshes the size, which
// the other process may have grown since our last write.
func (w *RotatingWriter) claim() error {
	for range maxReopen {
		if err := unix.Flock(int(w.file.Fd()), unix.LOCK_EX); err != nil {
			return fmt.Errorf("acquiring file lock: %w", err)
		}
		held, err := w.file.Stat()
		if err != nil {
			return fmt.Errorf("stat log file: %w", err)
		}
		if onDisk, err := os.Stat(w.path); err == nil && os.SameFile(held, onDisk) {
			w.size = held.Size()
			return nil
		}

		// Closing drops the lock on the rotated file.
		_ = w.file.Close()
		w.file = nil
		if err := w.open(); err != nil {
			return err
		}
	}
	return fmt.Errorf("log file %s keeps moving", w.path)
}

func (w *RotatingWriter) unlock() {
	if w.file != nil {
		_ = unix.Flock(int(w.file.Fd()), unix.LOCK_UN)
	}
}

func (w *RotatingWriter) due(n int64) bool {
	if w.size == 0 {
		return false
	}
	if w.size+n > w.cfg.MaxSize {
		return true
	}
	return w.cfg.Daily && midnight(time.Now()).After(w.day)
}

// rotate renames the locked file to a timestamped backup and opens a fresh
// one. Must be called with the lock from claim held.
func (w *RotatingWriter) rotate() error {
	err := os.Rename(w.path, w.backupName(time.Now()))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		return fmt.Errorf("closing rotated file: %w", err)
	}
	w.file = nil
	if err := w.open(); err != nil {
		return err
	}
	w.prune()
	return nil
}

func (w *RotatingWriter) backupName(t time.Time) string {
	ext := filepath.Ext(w.path)
	return strings.TrimSuffix(w.path, ext) + "." + t.Format(backupStamp) + ext
}

// backups lists rotated files of this log, newest first.
func (w *RotatingWriter) backups() []string {
	ext := filepath.Ext(w.path)
	prefix := filepath.Base(strings.TrimSuffix(w.path, ext)) + "."

	entries, err := os.ReadDir(filepath.Dir(w.path))
	if err != nil {
		return nil
	}

	type backup struct {
		path string
		mod  time.Time
	}
	var found []backup
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || name == filepath.Base(w.path) ||
			!strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, backup{filepath.Join(filepath.Dir(w.path), name), info.ModTime()})
	}
	slices.SortFunc(found, func(a, b backup) int { return b.mod.Compare(a.mod) })

	paths := make([]string, len(found))
	for i, b := range found {
		paths[i] = b.path
	}
	return paths
}

// prune drops rotated files past MaxBackups or older than MaxAge.
func (w *RotatingWriter) prune() {
	cutoff := time.Now().AddDate(0, 0, -w.cfg.MaxAge)
	for i, path := range w.backups() {
		tooMany := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := false
		if w.cfg.MaxAge > 0 {
			if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
				tooOld = true
			}
		}
		if tooMany || tooOld {
			_ = os.Remove(path)
		}
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
