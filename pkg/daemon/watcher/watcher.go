// Package watcher reports capture files that appear in or disappear from
// the snapshot root.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/snapshot"
)

// Op is the kind of change observed.
type Op int

const (
	// Created means a file appeared in the root.
	Created Op = iota + 1
	// Removed means a file was deleted or moved out of the root.
	Removed
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one change to a file directly under the watched root.
type Event struct {
	Path string
	Op   Op
}

// Watcher watches a single directory. Captures are stored flat, so
// subdirectories are not watched.
type Watcher struct {
	fsw    *fsnotify.Watcher
	mu     sync.RWMutex
	root   string
	closed bool
	log    *logging.Logger
}

// New creates a Watcher with no root.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, log: logging.Get("watcher")}, nil
}

// Watch makes root the watched directory, replacing any previous root.
func (w *Watcher) Watch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", abs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("watcher closed")
	}
	if w.root == abs {
		return nil
	}
	if err := w.fsw.Add(abs); err != nil {
		return err
	}
	if w.root != "" {
		_ = w.fsw.Remove(w.root)
	}

	w.log.Debug("watching snapshot root", "path", abs, "previous", w.root)
	w.root = abs
	return nil
}

// Unwatch stops watching the current root.
func (w *Watcher) Unwatch() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.root == "" {
		return
	}
	_ = w.fsw.Remove(w.root)
	w.root = ""
}

// Root returns the watched directory, or "" if none.
func (w *Watcher) Root() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// Run delivers events to onEvent until ctx is cancelled or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context, onEvent func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev, keep := w.translate(event); keep && onEvent != nil {
				onEvent(ev)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

// translate filters raw events down to capture files in the root.
func (w *Watcher) translate(event fsnotify.Event) (Event, bool) {
	w.mu.Lock()
	root := w.root
	if root != "" && event.Name == root && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.log.Warn("snapshot root disappeared", "path", root)
		w.root = ""
	}
	w.mu.Unlock()

	if root == "" || filepath.Dir(event.Name) != root || snapshot.IsTempName(event.Name) {
		return Event{}, false
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Event{Path: event.Name, Op: Removed}, true
	case event.Op&fsnotify.Create != 0:
		info, err := os.Lstat(event.Name)
		if err != nil || !info.Mode().IsRegular() {
			return Event{}, false
		}
		return Event{Path: event.Name, Op: Created}, true
	default:
		return Event{}, false
	}
}

// Close stops watching and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.root = ""
	return w.fsw.Close()
}
