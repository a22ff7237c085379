// Package snapshot manages the directory that holds captured page archives.
// Files are written to a temporary name and renamed into place only after
// they are flushed, so a listed file is always complete.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/charlievieth/fastwalk"
	"github.com/google/uuid"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/trash"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// Ext is the extension of every capture file.
const Ext = ".mhtml"

// tempPrefix marks in-flight writes. List never reports these files.
const tempPrefix = ".tabkeep-tmp-"

const maxNameLen = 80

// RootSource persists the configured snapshot root.
type RootSource interface {
	SnapshotRoot() (string, error)
	SetSnapshotRoot(path string) error
}

// Options configures a Store.
type Options struct {
	// MaxSize is the hard cap on a single file. Zero disables the cap.
	MaxSize int64

	// UseTrash moves deleted files to the system trash.
	UseTrash bool
}

// FileRef points at a stored capture.
type FileRef struct {
	Name string
	Path string
	Size int64
}

// Store writes, deletes and enumerates capture files under a single root.
type Store struct {
	roots RootSource
	opts  Options
	log   *logging.Logger

	// mu orders root changes against writes so a file never lands in a
	// root that is being replaced.
	mu sync.RWMutex
}

// New creates a Store reading its root from roots.
func New(roots RootSource, opts Options) *Store {
	return &Store{
		roots: roots,
		opts:  opts,
		log:   logging.Get("snapshot"),
	}
}

// Root returns the configured root without touching the filesystem.
func (s *Store) Root() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots.SnapshotRoot()
}

// ResolveRoot returns the configured root, creating it if absent.
func (s *Store) ResolveRoot() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveRoot()
}

func (s *Store) resolveRoot() (string, error) {
	root, err := s.roots.SnapshotRoot()
	if err != nil {
		return "", err
	}
	if err := ensureWritableDir(root); err != nil {
		return "", err
	}
	return root, nil
}

// SetRoot validates path and makes it the new root. Existing files stay
// where they are.
func (s *Store) SetRoot(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: path is required", types.ErrValidation)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ensureWritableDir(abs); err != nil {
		return err
	}
	if err := s.roots.SetSnapshotRoot(abs); err != nil {
		return err
	}

	s.log.Info("snapshot root changed", "path", abs)
	return nil
}

// Write stores data under the root and returns where it landed.
func (s *Store) Write(data []byte, suggestedName string) (FileRef, error) {
	if len(data) == 0 {
		return FileRef{}, fmt.Errorf("%w: refusing to write an empty capture", types.ErrStorage)
	}
	if s.opts.MaxSize > 0 && int64(len(data)) > s.opts.MaxSize {
		return FileRef{}, fmt.Errorf("%w: capture of %d bytes exceeds the %d byte cap",
			types.ErrStorage, len(data), s.opts.MaxSize)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, err := s.resolveRoot()
	if err != nil {
		return FileRef{}, err
	}

	name := SanitizeName(suggestedName) + "-" + uuid.NewString() + Ext
	finalPath := filepath.Join(root, name)

	tmp, err := os.CreateTemp(root, tempPrefix+"*")
	if err != nil {
		return FileRef{}, fmt.Errorf("%w: create temp file: %v", types.ErrStorage, err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return FileRef{}, fmt.Errorf("%w: write %s: %v", types.ErrStorage, name, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return FileRef{}, fmt.Errorf("%w: rename into place: %v", types.ErrStorage, err)
	}

	s.log.Debug("capture written", "path", finalPath, "bytes", len(data))
	return FileRef{Name: name, Path: finalPath, Size: int64(len(data))}, nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Delete removes a capture file. A missing file is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := trash.Remove(ctx, path, s.opts.UseTrash); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

// List enumerates the capture files directly under the root. Captures are
// flat, so subdirectories and files without the capture extension belong to
// someone else and are never reported.
func (s *Store) List(ctx context.Context) ([]string, error) {
	root, err := s.ResolveRoot()
	if err != nil {
		return nil, err
	}
	root = filepath.Clean(root)

	var (
		mu    sync.Mutex
		files []string
	)

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Files may vanish mid-walk.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if filepath.Clean(path) == root {
				return nil
			}
			return fastwalk.SkipDir
		}
		if !IsCaptureName(d.Name()) || !d.Type().IsRegular() {
			return nil
		}

		mu.Lock()
		files = append(files, path)
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, walkErr
		}
		return nil, fmt.Errorf("%w: list %s: %v", types.ErrStorage, root, walkErr)
	}

	return files, nil
}

// IsCaptureName reports whether a file name looks like one this store
// wrote.
func IsCaptureName(name string) bool {
	return strings.HasSuffix(name, Ext) && !strings.HasPrefix(name, tempPrefix)
}

// SanitizeName turns a page title into a safe file name stem.
func SanitizeName(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.TrimSuffix(title, Ext) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastDash = false
		case r == '_' || r == '.':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= maxNameLen {
			break
		}
	}

	name := strings.Trim(b.String(), "-.")
	if name == "" {
		return "page"
	}
	return name
}

// ensureWritableDir creates dir if needed and proves it accepts new files.
func ensureWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: snapshot root is not set", types.ErrConfig)
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", types.ErrConfig, dir)
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", types.ErrConfig, dir, err)
		}
	case err != nil:
		return fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	f, err := os.CreateTemp(dir, tempPrefix+"check-*")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable: %v", types.ErrConfig, dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// IsTempName reports whether name belongs to an in-flight write.
func IsTempName(name string) bool {
	return strings.HasPrefix(filepath.Base(name), tempPrefix)
}
