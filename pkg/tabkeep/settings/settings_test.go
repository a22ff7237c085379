package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tabkeep/pkg/daemon/store"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/settings"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

func newSettings(t *testing.T) (*settings.Settings, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return settings.New(st, settings.Defaults{SnapshotRoot: "/default/root"}), st
}

func TestDefaults(t *testing.T) {
	s, _ := newSettings(t)

	root, err := s.SnapshotRoot()
	require.NoError(t, err)
	assert.Equal(t, "/default/root", root)

	mode, err := s.ProfileFilter()
	require.NoError(t, err)
	assert.Equal(t, types.FilterActive, mode)
}

func TestSetAndGet(t *testing.T) {
	s, st := newSettings(t)

	require.NoError(t, s.Set(settings.KeyProfileFilter, "ALL"))
	require.NoError(t, s.Set(settings.KeySnapshotRoot, "/captures"))

	v, err := s.Get(settings.KeyProfileFilter)
	require.NoError(t, err)
	assert.Equal(t, "all", v)

	// Values survive a new Settings over the same backend.
	again := settings.New(st, settings.Defaults{SnapshotRoot: "/other"})
	root, err := again.SnapshotRoot()
	require.NoError(t, err)
	assert.Equal(t, "/captures", root)

	all, err := again.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		settings.KeySnapshotRoot:  "/captures",
		settings.KeyProfileFilter: "all",
	}, all)
}

func TestSet_Invalid(t *testing.T) {
	s, _ := newSettings(t)

	assert.ErrorIs(t, s.Set(settings.KeyProfileFilter, "visible"), types.ErrValidation)
	assert.ErrorIs(t, s.Set(settings.KeyProfileFilter, ""), types.ErrValidation)
	assert.ErrorIs(t, s.Set("theme", "dark"), types.ErrValidation)
	assert.ErrorIs(t, s.Set(settings.KeySnapshotRoot, ""), types.ErrValidation)

	_, err := s.Get("theme")
	assert.ErrorIs(t, err, types.ErrValidation)
}
