package daemon_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tabkeep/pkg/daemon"
)

func TestWriteStatusReady(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "tabkeepd.status")

	require.NoError(t, daemon.WriteStatusReady(statusPath, "127.0.0.1:7465"))

	data, err := os.ReadFile(statusPath)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ready", raw["status"])
	assert.Equal(t, "127.0.0.1:7465", raw["addr"])
	assert.EqualValues(t, os.Getpid(), raw["pid"])
	assert.NotContains(t, raw, "error")
}

func TestWriteStatusError(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "tabkeepd.status")
	startErr := errors.New("listen tcp 127.0.0.1:7465: address already in use")

	require.NoError(t, daemon.WriteStatusError(statusPath, startErr))

	status, err := daemon.ReadStatus(statusPath)
	require.NoError(t, err)
	assert.Equal(t, daemon.StatusError, status.Status)
	assert.Equal(t, startErr.Error(), status.Error)
	assert.Zero(t, status.PID)
	assert.Empty(t, status.Addr)
}

func TestReadStatus_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := daemon.ReadStatus(filepath.Join(dir, "missing.status"))
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.status")
	require.NoError(t, os.WriteFile(invalid, []byte("not json"), 0o644))
	_, err = daemon.ReadStatus(invalid)
	assert.Error(t, err)
}

func TestRemoveStatus(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "tabkeepd.status")

	require.NoError(t, daemon.WriteStatusReady(statusPath, "127.0.0.1:0"))
	require.NoError(t, daemon.RemoveStatus(statusPath))
	assert.NoFileExists(t, statusPath)
}

func TestStatusPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/home/user/.local/state/tabkeep", "tabkeepd.status"),
		daemon.StatusPath("/home/user/.local/state/tabkeep/tabkeepd.pid"))
}
