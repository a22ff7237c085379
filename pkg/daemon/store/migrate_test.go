package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// putV1Snapshot writes a record the way schema v1 did, without the file index.
func putV1Snapshot(t *testing.T, s *Store, rec *types.SnapshotRecord) {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(rec.ID), data); err != nil {
			return err
		}
		return txn.Set(profileIndexKey(rec.ProfileID, rec.ID), nil)
	})
	if err != nil {
		t.Fatalf("put v1 snapshot: %v", err)
	}
}

func TestMigrateFromV1ToV2(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	for i := 0; i < 3; i++ {
		putV1Snapshot(t, s, &types.SnapshotRecord{
			ID:        fmt.Sprintf("r%d", i),
			ProfileID: "p1",
			FilePath:  fmt.Sprintf("/snap/%d.mhtml", i),
			Timestamp: time.Now(),
			Seq:       uint64(i + 1),
		})
	}

	if _, err := s.SnapshotByFilePath("/snap/1.mhtml"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("v1 database should have no file index, got %v", err)
	}

	var progressCalls int
	count, err := s.Migrate(context.Background(), func(MigrationProgress) { progressCalls++ })
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 migration, got %d", count)
	}

	schema := s.GetSchema()
	if schema == nil || schema.Version != CurrentSchemaVersion {
		t.Fatalf("Expected schema version %d, got %+v", CurrentSchemaVersion, schema)
	}

	rec, err := s.SnapshotByFilePath("/snap/1.mhtml")
	if err != nil {
		t.Fatalf("SnapshotByFilePath after migration failed: %v", err)
	}
	if rec.ID != "r1" {
		t.Errorf("file index points at %q, want r1", rec.ID)
	}

	if progressCalls == 0 {
		t.Error("Expected a final progress callback")
	}
}

func TestMigrateCancellation(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	putV1Snapshot(t, s, &types.SnapshotRecord{ID: "r1", ProfileID: "p1", FilePath: "/snap/1.mhtml"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Migrate(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}
