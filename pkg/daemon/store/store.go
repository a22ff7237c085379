// Package store provides Badger DB-backed persistence for the registry:
// profiles, snapshot records and settings.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// Key prefixes for different data types
const (
	prefixProfile      = "p:" // Profile records keyed by normalized id
	prefixSnapshot     = "s:" // Snapshot records keyed by id
	prefixProfileIndex = "x:" // x:<profileId>\x00<recordId> -> empty
	prefixFile         = "f:" // f:<filePath> -> recordId
	prefixSetting      = "c:" // Settings keyed by name
	prefixMeta         = "m:" // Metadata (schema, sequences)
)

const sequenceBandwidth = 64

// Store is the registry storage backed by Badger DB.
type Store struct {
	db *badger.DB

	seqMu sync.Mutex
	seqs  map[string]*badger.Sequence
}

// Stats summarizes the stored data.
type Stats struct {
	Profiles      int   `json:"profiles"`
	Snapshots     int   `json:"snapshots"`
	SnapshotBytes int64 `json:"snapshotBytes"`
}

// Open opens or creates a store at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{log: logging.Get("store")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, seqs: make(map[string]*badger.Sequence)}, nil
}

// Close releases leased sequences and closes the store.
func (s *Store) Close() error {
	s.seqMu.Lock()
	for name, seq := range s.seqs {
		_ = seq.Release()
		delete(s.seqs, name)
	}
	s.seqMu.Unlock()
	return s.db.Close()
}

// NextSeq returns the next value of the named monotonic sequence, starting at 1.
// Values survive restarts; leased but unused values are skipped.
func (s *Store) NextSeq(name string) (uint64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	seq, ok := s.seqs[name]
	if !ok {
		var err error
		seq, err = s.db.GetSequence([]byte(prefixMeta+"seq:"+name), sequenceBandwidth)
		if err != nil {
			return 0, fmt.Errorf("%w: lease sequence %s: %v", types.ErrStorage, name, err)
		}
		s.seqs[name] = seq
	}

	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: next %s: %v", types.ErrStorage, name, err)
	}
	return n + 1, nil
}

// PutProfile stores a profile, replacing any previous version.
func (s *Store) PutProfile(p *types.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(p.ProfileID), data)
	})
}

// GetProfile retrieves a profile by normalized id.
func (s *Store) GetProfile(id string) (*types.Profile, error) {
	var p types.Profile
	if err := s.getJSON(profileKey(id), &p); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: profile %q", types.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

// DeleteProfile removes a profile. Snapshot records are left untouched.
func (s *Store) DeleteProfile(id string) error {
	return s.update(func(txn *badger.Txn) error {
		key := profileKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: profile %q", types.ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// ListProfiles returns all profiles in insertion order.
func (s *Store) ListProfiles() ([]*types.Profile, error) {
	var profiles []*types.Profile
	err := s.iterate(prefixProfile, func(_ []byte, val []byte) error {
		var p types.Profile
		if err := json.Unmarshal(val, &p); err != nil {
			return nil //nolint:nilerr // skip malformed entries
		}
		profiles = append(profiles, &p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].CreatedSeq < profiles[j].CreatedSeq
	})
	return profiles, nil
}

// PutSnapshot stores a snapshot record together with its profile and file
// path index entries in one transaction.
func (s *Store) PutSnapshot(rec *types.SnapshotRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(rec.ID), data); err != nil {
			return err
		}
		if err := txn.Set(profileIndexKey(rec.ProfileID, rec.ID), nil); err != nil {
			return err
		}
		return txn.Set(fileKey(rec.FilePath), []byte(rec.ID))
	})
}

// GetSnapshot retrieves a snapshot record by id.
func (s *Store) GetSnapshot(id string) (*types.SnapshotRecord, error) {
	var rec types.SnapshotRecord
	if err := s.getJSON(snapshotKey(id), &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: snapshot %q", types.ErrNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

// SnapshotByFilePath looks up the record that owns a file.
func (s *Store) SnapshotByFilePath(path string) (*types.SnapshotRecord, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: no record for %q", types.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return s.GetSnapshot(id)
}

// DeleteSnapshot removes a record and its index entries. It returns the
// removed record, or nil when no record had that id.
func (s *Store) DeleteSnapshot(id string) (*types.SnapshotRecord, error) {
	var removed *types.SnapshotRecord
	err := s.update(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		var rec types.SnapshotRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}

		for _, key := range [][]byte{
			snapshotKey(id),
			profileIndexKey(rec.ProfileID, id),
			fileKey(rec.FilePath),
		} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = &rec
		return nil
	})
	return removed, err
}

// ListSnapshots returns every snapshot record, newest first.
func (s *Store) ListSnapshots() ([]*types.SnapshotRecord, error) {
	var recs []*types.SnapshotRecord
	err := s.iterate(prefixSnapshot, func(_ []byte, val []byte) error {
		var rec types.SnapshotRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return nil //nolint:nilerr // skip malformed entries
		}
		recs = append(recs, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(recs)
	return recs, nil
}

// ListSnapshotsByProfile returns the records owned by one profile, newest
// first. Records deleted while the scan runs are skipped.
func (s *Store) ListSnapshotsByProfile(profileID string) ([]*types.SnapshotRecord, error) {
	var recs []*types.SnapshotRecord
	prefix := profileIndexPrefix(profileID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			item, err := txn.Get(snapshotKey(id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			var rec types.SnapshotRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			recs = append(recs, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	sortNewestFirst(recs)
	return recs, nil
}

// GetSetting decodes a setting into dst. It reports false when the key has
// never been set.
func (s *Store) GetSetting(key string, dst any) (bool, error) {
	if err := s.getJSON([]byte(prefixSetting+key), dst); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PutSetting stores a setting value.
func (s *Store) PutSetting(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixSetting+key), data)
	})
}

// Stats counts profiles and snapshots.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.iterate(prefixProfile, func(_ []byte, _ []byte) error {
		st.Profiles++
		return nil
	})
	if err != nil {
		return st, err
	}
	err = s.iterate(prefixSnapshot, func(_ []byte, val []byte) error {
		var rec types.SnapshotRecord
		if json.Unmarshal(val, &rec) == nil {
			st.Snapshots++
			st.SnapshotBytes += rec.Size
		}
		return nil
	})
	return st, err
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	if err := s.db.Update(fn); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

func (s *Store) getJSON(key []byte, dst any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
}

// iterate calls fn for every key under prefix with the value copied.
func (s *Store) iterate(prefix string, fn func(key, val []byte) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

func sortNewestFirst(recs []*types.SnapshotRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].NewerThan(*recs[j])
	})
}

func profileKey(id string) []byte {
	return []byte(prefixProfile + types.NormalizeID(id))
}

func snapshotKey(id string) []byte {
	return []byte(prefixSnapshot + id)
}

func profileIndexPrefix(profileID string) []byte {
	return []byte(prefixProfileIndex + types.NormalizeID(profileID) + "\x00")
}

func profileIndexKey(profileID, id string) []byte {
	return append(profileIndexPrefix(profileID), id...)
}

func fileKey(path string) []byte {
	return []byte(prefixFile + filepath.Clean(path))
}

// badgerLogger routes badger's internal logging to the store component logger.
type badgerLogger struct {
	log *logging.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
