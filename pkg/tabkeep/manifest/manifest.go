package manifest

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// stampLayout is the time part of an entry ID. It sorts lexically and is
// safe in file names.
const stampLayout = "20060102T150405Z"

const entryExt = ".json"

// Manifest is a directory of JSON entries, one per destructive operation.
// An entry's ID carries its operation and UTC time, so listing and expiry
// work from file names alone.
type Manifest struct {
	dir string
	now func() time.Time
	log *logging.Logger

	mu sync.Mutex
}

// New returns a journal in dir. The directory is created on first write.
func New(dir string) (*Manifest, error) {
	if dir == "" {
		return nil, errors.New("manifest directory cannot be empty")
	}
	return &Manifest{dir: dir, now: time.Now, log: logging.Get("manifest")}, nil
}

// EnsureDir creates the journal directory.
func (m *Manifest) EnsureDir() error {
	return os.MkdirAll(m.dir, 0o755)
}

// LogDelete records a user deletion of saved pages.
func (m *Manifest) LogDelete(pages []PageRecord) (*Entry, error) {
	return m.append(OpDelete, pages)
}

// LogCleanup records an orphan cleanup.
func (m *Manifest) LogCleanup(pages []PageRecord) (*Entry, error) {
	return m.append(OpCleanup, pages)
}

func (m *Manifest) append(op OperationType, pages []PageRecord) (*Entry, error) {
	now := m.now().UTC().Truncate(time.Second)
	entry := &Entry{
		ID:        newID(op, now),
		Timestamp: now,
		Operation: op,
		Pages:     pages,
		Summary:   summarize(pages),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.EnsureDir(); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}
	if err := m.write(entry); err != nil {
		return nil, fmt.Errorf("writing manifest entry %s: %w", entry.ID, err)
	}
	return entry, nil
}

// summarize counts every page; bytes only for pages actually removed.
func summarize(pages []PageRecord) Summary {
	s := Summary{TotalPages: int64(len(pages))}
	for _, p := range pages {
		if p.Error != "" {
			s.Failed++
			continue
		}
		s.TotalBytes += p.Size
	}
	return s
}

func (m *Manifest) write(entry *Entry) error {
	tmp, err := os.CreateTemp(m.dir, ".entry-*")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := errors.Join(enc.Encode(entry), tmp.Sync(), tmp.Close()); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), m.path(entry.ID)); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (m *Manifest) path(id string) string {
	return filepath.Join(m.dir, id+entryExt)
}

// List returns entries newest first, at most limit of them when limit is
// positive. Unreadable entries are skipped and logged.
func (m *Manifest) List(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.ids()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(entries) == limit {
			break
		}
		entry, err := m.read(id)
		if err != nil {
			m.log.Warn("skipping unreadable manifest entry", "id", id, "error", err)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// ids returns the well-formed entry IDs in the directory, newest first.
func (m *Manifest) ids() ([]string, error) {
	files, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest directory: %w", err)
	}

	type stamped struct {
		id string
		at time.Time
	}
	var found []stamped
	for _, f := range files {
		id, ok := strings.CutSuffix(f.Name(), entryExt)
		if !ok || !f.Type().IsRegular() {
			continue
		}
		if _, at, err := parseID(id); err == nil {
			found = append(found, stamped{id, at})
		}
	}
	slices.SortFunc(found, func(a, b stamped) int {
		if c := b.at.Compare(a.at); c != 0 {
			return c
		}
		return cmp.Compare(b.id, a.id)
	})

	ids := make([]string, len(found))
	for i, s := range found {
		ids[i] = s.id
	}
	return ids, nil
}

// Get reads one entry. Malformed IDs fail with types.ErrValidation and
// unknown ones with types.ErrNotFound.
func (m *Manifest) Get(id string) (*Entry, error) {
	if _, _, err := parseID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.read(id)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: manifest entry %s", types.ErrNotFound, id)
	}
	return entry, err
}

func (m *Manifest) read(id string) (*Entry, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding manifest entry %s: %w", id, err)
	}
	return &entry, nil
}

// Cleanup removes entries whose ID time is older than retentionDays and
// returns how many went. A non-positive retention keeps everything.
func (m *Manifest) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := m.now().UTC().AddDate(0, 0, -retentionDays)

	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.ids()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if _, at, _ := parseID(id); !at.Before(cutoff) {
			continue
		}
		if err := os.Remove(m.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.log.Warn("cannot remove expired manifest entry", "id", id, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// newID builds "<op>-<stamp>-<8 hex>", e.g. delete-20240615T103000Z-1f0c9a2b.
func newID(op OperationType, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", op, at.UTC().Format(stampLayout), uuid.NewString()[:8])
}

// parseID splits an entry ID into its operation and time.
func parseID(id string) (OperationType, time.Time, error) {
	invalid := fmt.Errorf("%w: invalid manifest entry id %q", types.ErrValidation, id)

	op, rest, ok := strings.Cut(id, "-")
	if !ok || (OperationType(op) != OpDelete && OperationType(op) != OpCleanup) {
		return "", time.Time{}, invalid
	}
	stamp, suffix, ok := strings.Cut(rest, "-")
	if !ok || len(suffix) != 8 || strings.Trim(suffix, "0123456789abcdef") != "" {
		return "", time.Time{}, invalid
	}
	at, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return "", time.Time{}, invalid
	}
	return OperationType(op), at, nil
}
