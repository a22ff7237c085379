package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func samplePages() *Result {
	return PagesResult([]types.SnapshotRecord{
		{
			ID: "a1", ProfileID: "work", URL: "https://go.dev/doc", Title: "Docs",
			FilePath: "/snap/Docs-a1.mhtml", Size: 2048, Timestamp: testNow.Add(-2 * time.Hour),
		},
		{
			ID: "b2", ProfileID: "work", URL: "https://example.com/a|b", Title: "Pipe",
			FilePath: "/snap/Pipe-b2.mhtml", Size: 1 << 20, Timestamp: testNow.Add(-3 * 24 * time.Hour),
		},
	}, testNow)
}

func sampleProfiles() *Result {
	return ProfilesResult([]types.ProfileView{
		{
			ProfileID: "work", ProfileName: "Work", IsCurrent: true,
			Tabs: []types.TabView{
				{ID: 1, URL: "https://go.dev/doc", SavedVersions: []types.SnapshotRecord{{ID: "a1"}, {ID: "a0"}}},
				{ID: 2, URL: "https://example.com"},
			},
		},
		{ProfileID: "old", ProfileName: "Old", IsHidden: true},
	})
}

func TestPagesResult(t *testing.T) {
	r := samplePages()
	require.Len(t, r.Pages, 2)

	p := r.Pages[0]
	assert.Equal(t, "a1", p.ID)
	assert.Equal(t, "/snap/Docs-a1.mhtml", p.Path)
	assert.Equal(t, "2.0 KiB", p.SizeHuman)
	assert.Equal(t, 2*time.Hour, p.Age)
	assert.False(t, p.Orphan)

	assert.Equal(t, int64(2048+1<<20), r.TotalSize())
}

func TestProfilesResult(t *testing.T) {
	r := sampleProfiles()
	require.Len(t, r.Profiles, 2)

	assert.Equal(t, ProfileInfo{ID: "work", Name: "Work", Current: true, Tabs: 2, Saved: 2}, r.Profiles[0])
	assert.True(t, r.Profiles[1].Hidden)
	assert.Zero(t, r.TotalSize())
}

func TestOrphansResult(t *testing.T) {
	report := types.ReconcileReport{
		OrphanRecords: []types.SnapshotRecord{{ID: "gone", URL: "https://x", FilePath: "/snap/gone.mhtml"}},
		OrphanFiles:   []string{"/snap/stray.mhtml"},
	}
	r := OrphansResult(report, func(string) int64 { return 4096 }, testNow)

	require.Len(t, r.Pages, 2)
	assert.True(t, r.Pages[0].Orphan)
	assert.Equal(t, "gone", r.Pages[0].ID)
	assert.Equal(t, "/snap/stray.mhtml", r.Pages[1].Path)
	assert.Equal(t, int64(4096), r.Pages[1].Size)
	assert.Equal(t, "4.0 KiB", r.Pages[1].SizeHuman)
	assert.True(t, r.Pages[1].Orphan)
}

func TestRows(t *testing.T) {
	header, data := rows(samplePages())
	assert.Equal(t, []string{"SIZE", "SAVED", "URL", "PATH"}, header)
	require.Len(t, data, 2)
	assert.Equal(t, "/snap/Docs-a1.mhtml", data[0][3])

	header, data = rows(sampleProfiles())
	assert.Equal(t, []string{"ID", "NAME", "TABS", "SAVED", "FLAGS"}, header)
	assert.Equal(t, []string{"work", "Work", "2", "2", "current"}, data[0])
	assert.Equal(t, []string{"old", "Old", "0", "0", "hidden"}, data[1])

	header, data = rows(&Result{})
	assert.Equal(t, "SIZE", header[0])
	assert.Empty(t, data)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("plain", func() Formatter { return &PlainFormatter{} })

	f, err := r.Get("plain")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)

	_, err = r.Get("nope")
	assert.ErrorContains(t, err, "unknown formatter")

	assert.Equal(t, []string{"plain"}, r.Available())
}

func TestDefaultRegistry(t *testing.T) {
	want := []string{"csv", "json", "jsonl", "markdown", "null", "paths", "plain", "pretty", "template", "tsv", "yaml"}
	assert.Equal(t, want, Available())

	for _, name := range want {
		f, err := Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
}
