package profile_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tabkeep/pkg/daemon/store"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/profile"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

func newRegistry(t *testing.T) *profile.Registry {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return profile.NewRegistry(st)
}

func TestUpsert_CaseInsensitive(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Upsert(profile.UpsertRequest{
		ProfileID:   "ABC-1",
		ProfileName: "Work",
		Tabs:        []types.Tab{{ID: 1, Title: "T", URL: "https://x"}},
	})
	require.NoError(t, err)

	p, err := r.Get("abc-1")
	require.NoError(t, err)
	assert.Equal(t, "abc-1", p.ProfileID)
	assert.Equal(t, "Work", p.ProfileName)
	assert.Len(t, p.Tabs, 1)

	// A second report under another casing updates the same profile.
	_, err = r.Upsert(profile.UpsertRequest{ProfileID: "Abc-1", ProfileName: "Work 2"})
	require.NoError(t, err)

	all, err := r.List(types.FilterAll, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Work 2", all[0].ProfileName)
	assert.Empty(t, all[0].Tabs)
	assert.NotNil(t, all[0].Tabs)
}

func TestUpsert_PreservesHidden(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Upsert(profile.UpsertRequest{ProfileID: "p1", ProfileName: "Home", ProfileDir: "Default"})
	require.NoError(t, err)
	require.NoError(t, r.SetVisibility("P1", true))

	p, err := r.Upsert(profile.UpsertRequest{ProfileID: "p1", ProfileName: "Home", UserID: "u@example.com"})
	require.NoError(t, err)
	assert.True(t, p.IsHidden)
	assert.Equal(t, "u@example.com", p.UserID)
	assert.Equal(t, "Default", p.ProfileDir)
}

func TestUpsert_Validation(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Upsert(profile.UpsertRequest{ProfileName: "x"})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = r.Upsert(profile.UpsertRequest{ProfileID: "p1"})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = r.Upsert(profile.UpsertRequest{ProfileID: "p1", ProfileName: "x", Tabs: []types.Tab{{ID: 1}}})
	assert.ErrorIs(t, err, types.ErrValidation)

	// Failed upserts leave nothing behind.
	_, err = r.Get("p1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestList_FilterAndOrder(t *testing.T) {
	r := newRegistry(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := r.Upsert(profile.UpsertRequest{ProfileID: id, ProfileName: id})
		require.NoError(t, err)
	}
	require.NoError(t, r.SetVisibility("b", true))

	active, err := r.List(types.FilterActive, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, profileIDs(active))

	all, err := r.List(types.FilterAll, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, profileIDs(all))

	all, err = r.List(types.FilterAll, "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, profileIDs(all))

	// A hidden current profile is still filtered out of the active view.
	active, err = r.List(types.FilterActive, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, profileIDs(active))
}

func TestSetVisibilityAndDelete_NotFound(t *testing.T) {
	r := newRegistry(t)

	assert.ErrorIs(t, r.SetVisibility("ghost", true), types.ErrNotFound)
	assert.ErrorIs(t, r.Delete("ghost"), types.ErrNotFound)

	_, err := r.Upsert(profile.UpsertRequest{ProfileID: "p1", ProfileName: "x"})
	require.NoError(t, err)
	require.NoError(t, r.Delete("P1"))

	_, err = r.Get("p1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpsert_Concurrent(t *testing.T) {
	r := newRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i%4)
			_, err := r.Upsert(profile.UpsertRequest{
				ProfileID:   id,
				ProfileName: fmt.Sprintf("name-%d", i),
				Tabs:        []types.Tab{{ID: int64(i), URL: fmt.Sprintf("https://x/%d", i)}},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := r.List(types.FilterAll, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for _, p := range all {
		// Name and tabs come from the same report.
		require.Len(t, p.Tabs, 1)
		assert.Equal(t, fmt.Sprintf("name-%d", p.Tabs[0].ID), p.ProfileName)
	}
}

func profileIDs(ps []*types.Profile) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ProfileID)
	}
	return out
}
