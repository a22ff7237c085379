package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// MigrationProgress reports migration progress.
type MigrationProgress struct {
	FromVersion  int
	ToVersion    int
	RecordsTotal int64
	RecordsDone  int64
}

// MigrationProgressFunc is called with progress updates during migration.
type MigrationProgressFunc func(MigrationProgress)

// Migrate runs any pending migrations to bring the database up to current schema.
// Returns the number of migrations run, or an error.
func (s *Store) Migrate(ctx context.Context, onProgress MigrationProgressFunc) (int, error) {
	schema := s.GetSchema()
	fromVersion := 0
	if schema != nil {
		fromVersion = schema.Version
	} else if s.hasAnyRecords() {
		// Records without schema = v1
		fromVersion = 1
	}

	if fromVersion >= CurrentSchemaVersion {
		return 0, nil
	}

	// A fresh database starts at the current layout.
	if fromVersion == 0 {
		return 0, s.SetSchema(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now()})
	}

	migrationsRun := 0

	for version := fromVersion + 1; version <= CurrentSchemaVersion; version++ {
		select {
		case <-ctx.Done():
			return migrationsRun, ctx.Err()
		default:
		}

		var err error
		switch version {
		case 2:
			err = s.migrateToV2(ctx, onProgress)
		}

		if err != nil {
			return migrationsRun, err
		}

		if err := s.SetSchema(&Schema{
			Version:   version,
			UpdatedAt: time.Now(),
		}); err != nil {
			return migrationsRun, err
		}

		migrationsRun++
	}

	return migrationsRun, nil
}

// migrateToV2 builds the file path index from existing snapshot records.
func (s *Store) migrateToV2(ctx context.Context, onProgress MigrationProgressFunc) error {
	var total int64
	if onProgress != nil {
		total = s.countSnapshots()
	}

	var done int64
	var recs []types.SnapshotRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixSnapshot)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			err := it.Item().Value(func(val []byte) error {
				var rec types.SnapshotRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return nil //nolint:nilerr // intentionally skip malformed entries
				}
				recs = append(recs, rec)
				done++

				if onProgress != nil && done%1000 == 0 {
					onProgress(MigrationProgress{
						FromVersion:  1,
						ToVersion:    2,
						RecordsTotal: total,
						RecordsDone:  done,
					})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(recs) > 0 {
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()

		for _, rec := range recs {
			if rec.FilePath == "" {
				continue
			}
			if err := wb.Set(fileKey(rec.FilePath), []byte(rec.ID)); err != nil {
				return err
			}
		}
		if err := wb.Flush(); err != nil {
			return err
		}
	}

	if onProgress != nil {
		onProgress(MigrationProgress{
			FromVersion:  1,
			ToVersion:    2,
			RecordsTotal: total,
			RecordsDone:  done,
		})
	}

	return nil
}

// countSnapshots counts snapshot records (for progress reporting).
func (s *Store) countSnapshots() int64 {
	var count int64
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixSnapshot)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count
}
