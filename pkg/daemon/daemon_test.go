package daemon_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tabkeep/pkg/daemon"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		ListenAddr: "127.0.0.1:0",
		DataDir:    filepath.Join(dir, "data"),
	}
	cfg.Snapshots.Root = filepath.Join(dir, "snapshots")
	cfg.Snapshots.MaxSize = "64KiB"
	cfg.Snapshots.MinSize = "1KiB"
	cfg.Profiles.DefaultFilter = "active"
	cfg.Manifest.Enabled = true
	cfg.Manifest.Path = filepath.Join(dir, "manifest")
	cfg.Manifest.RetentionDays = 30
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, <-chan error) {
	t.Helper()

	d, err := daemon.Open(context.Background(), cfg, "test")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	t.Cleanup(func() {
		d.Stop()
		<-done
		_ = d.Close()
	})

	base := "http://" + d.Addr()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	return d, done
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshots.MaxSize = "lots"
	_, err := daemon.Open(context.Background(), cfg, "test")
	assert.ErrorIs(t, err, types.ErrConfig)

	cfg = testConfig(t)
	cfg.Profiles.DefaultFilter = "some"
	_, err = daemon.Open(context.Background(), cfg, "test")
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestDaemon_ServesAndStopsOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	d, err := daemon.Open(context.Background(), cfg, "v1.2.3")
	require.NoError(t, err)
	defer d.Close()

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	base := "http://" + d.Addr()
	var health daemon.HealthResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&health) == nil
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "v1.2.3", health.Version)
	assert.Equal(t, cfg.Snapshots.Root, health.SnapshotRoot)
	assert.DirExists(t, cfg.Snapshots.Root)
	assert.DirExists(t, cfg.DBPath())

	resp, err := http.Post(base+"/shutdown", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after /shutdown")
	}
}

func TestDaemon_RunStopsOnContextCancel(t *testing.T) {
	d, err := daemon.Open(context.Background(), testConfig(t), "test")
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}

func TestDaemon_PersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)

	d, err := daemon.Open(context.Background(), cfg, "test")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	base := "http://" + d.Addr()
	require.Eventually(t, func() bool {
		resp, err := http.Post(base+"/profiles", "application/json",
			strings.NewReader(`{"profileId":"p1","profileName":"Work"}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	d.Stop()
	require.NoError(t, <-done)
	require.NoError(t, d.Close())

	d2, _ := startDaemon(t, cfg)
	resp, err := http.Get("http://" + d2.Addr() + "/profile-name?profileId=P1")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"Work"`)
}

func TestDaemon_DetectsExternalRemoval(t *testing.T) {
	cfg := testConfig(t)
	d, _ := startDaemon(t, cfg)
	base := "http://" + d.Addr()

	body := `{"profileId":"p1","url":"https://x","title":"X","mhtmlData":"` + payload(2048) + `"}`
	resp, err := http.Post(base+"/save-page", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var rec types.SnapshotRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, os.Remove(rec.FilePath))

	assert.Eventually(t, func() bool {
		resp, err := http.Get(base + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(data), "tabkeep_snapshot_files_removed_externally_total 1")
	}, 5*time.Second, 50*time.Millisecond)
}
