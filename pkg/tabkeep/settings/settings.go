// Package settings persists the registry's global settings.
package settings

import (
	"fmt"
	"sync"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// Setting keys.
const (
	KeySnapshotRoot  = "snapshotRootPath"
	KeyProfileFilter = "profileFilter"
)

// Backend is the persisted key-value storage behind Settings.
type Backend interface {
	GetSetting(key string, dst any) (bool, error)
	PutSetting(key string, value any) error
}

// Defaults are returned for keys that were never set.
type Defaults struct {
	SnapshotRoot  string
	ProfileFilter types.FilterMode
}

// Settings reads and writes settings, falling back to defaults.
type Settings struct {
	mu       sync.RWMutex
	backend  Backend
	defaults Defaults
}

// New creates Settings over backend.
func New(backend Backend, defaults Defaults) *Settings {
	if defaults.ProfileFilter == "" {
		defaults.ProfileFilter = types.FilterActive
	}
	return &Settings{backend: backend, defaults: defaults}
}

// Get returns the stored value of key or its default.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case KeySnapshotRoot:
		return s.SnapshotRoot()
	case KeyProfileFilter:
		mode, err := s.ProfileFilter()
		return string(mode), err
	default:
		return "", fmt.Errorf("%w: unknown setting %q", types.ErrValidation, key)
	}
}

// Set validates and stores a setting. The snapshot root is stored as given;
// callers validate the directory first.
func (s *Settings) Set(key, value string) error {
	switch key {
	case KeySnapshotRoot:
		return s.SetSnapshotRoot(value)
	case KeyProfileFilter:
		mode, err := types.ParseFilterMode(value, "")
		if err != nil {
			return err
		}
		if mode == "" {
			return fmt.Errorf("%w: %s requires a value", types.ErrValidation, key)
		}
		return s.put(key, string(mode))
	default:
		return fmt.Errorf("%w: unknown setting %q", types.ErrValidation, key)
	}
}

// SnapshotRoot returns the directory new captures are written under.
func (s *Settings) SnapshotRoot() (string, error) {
	var root string
	found, err := s.get(KeySnapshotRoot, &root)
	if err != nil {
		return "", err
	}
	if !found || root == "" {
		return s.defaults.SnapshotRoot, nil
	}
	return root, nil
}

// SetSnapshotRoot stores the snapshot root.
func (s *Settings) SetSnapshotRoot(path string) error {
	if path == "" {
		return fmt.Errorf("%w: %s requires a value", types.ErrValidation, KeySnapshotRoot)
	}
	return s.put(KeySnapshotRoot, path)
}

// ProfileFilter returns the default list filter.
func (s *Settings) ProfileFilter() (types.FilterMode, error) {
	var raw string
	found, err := s.get(KeyProfileFilter, &raw)
	if err != nil {
		return "", err
	}
	if !found {
		return s.defaults.ProfileFilter, nil
	}
	mode, err := types.ParseFilterMode(raw, s.defaults.ProfileFilter)
	if err != nil {
		// A value written by an older build; fall back.
		return s.defaults.ProfileFilter, nil //nolint:nilerr
	}
	return mode, nil
}

// All returns every setting with defaults applied.
func (s *Settings) All() (map[string]string, error) {
	out := make(map[string]string, 2)
	for _, key := range []string{KeySnapshotRoot, KeyProfileFilter} {
		v, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (s *Settings) get(key string, dst any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, err := s.backend.GetSetting(key, dst)
	if err != nil {
		return false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return found, nil
}

func (s *Settings) put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.PutSetting(key, value); err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}
