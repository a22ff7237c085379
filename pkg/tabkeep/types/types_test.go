package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "abc-1", NormalizeID("ABC-1"))
	assert.Equal(t, "abc-1", NormalizeID("  Abc-1 "))
	assert.Equal(t, "", NormalizeID(""))
}

func TestParseFilterMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		def     FilterMode
		want    FilterMode
		wantErr bool
	}{
		{name: "empty uses default", input: "", def: FilterAll, want: FilterAll},
		{name: "active", input: "active", def: FilterAll, want: FilterActive},
		{name: "all uppercase", input: "ALL", def: FilterActive, want: FilterAll},
		{name: "unknown", input: "visible", def: FilterActive, want: FilterActive, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilterMode(tt.input, tt.def)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotRecord_NewerThan(t *testing.T) {
	now := time.Now()
	older := SnapshotRecord{Seq: 1, Timestamp: now}
	newer := SnapshotRecord{Seq: 2, Timestamp: now}
	assert.True(t, newer.NewerThan(older))
	assert.False(t, older.NewerThan(newer))

	sameSeq := SnapshotRecord{Seq: 1, Timestamp: now.Add(time.Second)}
	assert.True(t, sameSeq.NewerThan(older))
}
