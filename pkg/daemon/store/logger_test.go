package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
)

func TestBadgerLogger_RoutesToStoreComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabkeep.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "debug",
		Path:       path,
		Components: map[string]string{"store": "warn"},
	}))
	t.Cleanup(func() { _ = logging.Close() })

	bl := badgerLogger{log: logging.Get("store")}
	bl.Infof("Replaying file id: %d at offset: %d\n", 1, 0)
	bl.Debugf("Value log discard stats empty\n")
	bl.Warningf("Truncate Needed. File %s size: %d\n", "000001.vlog", 2048)
	bl.Errorf("Failure while flushing memtable to disk: %v\n", os.ErrPermission)

	require.NoError(t, logging.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "store")
	assert.Contains(t, lines[0], "000001.vlog")
	assert.Contains(t, lines[1], "permission denied")
	assert.NotContains(t, string(data), "Replaying")
}
