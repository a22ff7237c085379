package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tabkeep/pkg/daemon"
	"github.com/jamesainslie/tabkeep/pkg/daemon/store"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/pageindex"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/profile"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/settings"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/snapshot"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// newTestDaemon serves a real registry over httptest.
func newTestDaemon(t *testing.T) (*Client, string) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := filepath.Join(t.TempDir(), "snapshots")
	cfg := settings.New(st, settings.Defaults{SnapshotRoot: root})
	files := snapshot.New(cfg, snapshot.Options{MaxSize: 1 << 20})

	svc := daemon.NewService(daemon.ServiceDeps{
		Store:          st,
		Profiles:       profile.NewRegistry(st),
		Pages:          pageindex.New(st, files, pageindex.Options{MinSize: 1024, MaxSize: 1 << 20}),
		Snapshots:      files,
		Settings:       cfg,
		Version:        "test",
		MaxCaptureSize: 1 << 20,
	})

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), root
}

func capture(n int) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("a"), n))
}

func TestClient_ProfileLifecycle(t *testing.T) {
	c, _ := newTestDaemon(t)
	ctx := context.Background()

	p, err := c.UpsertProfile(ctx, "Work-1", "Work", []types.Tab{{ID: 1, Title: "T", URL: "https://x"}})
	require.NoError(t, err)
	assert.Equal(t, "work-1", p.ProfileID)

	name, err := c.ProfileName(ctx, "WORK-1")
	require.NoError(t, err)
	assert.Equal(t, "Work", name)

	require.NoError(t, c.SetVisibility(ctx, "work-1", true))
	views, err := c.ListProfiles(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, views)

	views, err = c.ListProfiles(ctx, "work-1", types.FilterAll)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsCurrent)
	assert.True(t, views[0].IsHidden)

	require.NoError(t, c.DeleteProfile(ctx, "work-1"))
	_, err = c.ProfileName(ctx, "work-1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
}

func TestClient_PagesAndCleanup(t *testing.T) {
	c, root := newTestDaemon(t)
	ctx := context.Background()

	rec, err := c.SavePage(ctx, "p1", "https://x", "X", capture(2048))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	_, err = c.SavePage(ctx, "p1", "https://x", "X", capture(10))
	assert.ErrorIs(t, err, types.ErrValidation)

	pages, err := c.ListSavedPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	orphan := filepath.Join(root, "orphan.mhtml")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))

	report, err := c.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{orphan}, report.OrphanFiles)

	res, err := c.Cleanup(ctx, false, true)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Success)

	results, err := c.DeleteSavedPages(ctx, []string{rec.ID}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	// Deleting an id that is already gone succeeds.
	require.NoError(t, c.DeleteSavedPage(ctx, rec.ID))
}

func TestClient_SavePathAndSettings(t *testing.T) {
	c, root := newTestDaemon(t)
	ctx := context.Background()

	got, err := c.SavePath(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.ErrorIs(t, c.SetSavePath(ctx, file), types.ErrConfig)

	newRoot := filepath.Join(t.TempDir(), "new")
	require.NoError(t, c.SetSavePath(ctx, newRoot))

	require.NoError(t, c.SetSetting(ctx, settings.KeyProfileFilter, "all"))
	all, err := c.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "all", all[settings.KeyProfileFilter])
	assert.Equal(t, newRoot, all[settings.KeySnapshotRoot])

	assert.ErrorIs(t, c.SetSetting(ctx, "bogus", "x"), types.ErrValidation)
}

func TestClient_Health(t *testing.T) {
	c, root := newTestDaemon(t)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, root, h.SnapshotRoot)
	assert.True(t, c.Ping(context.Background()))
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url)
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, c.Ping(context.Background()))
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Code)
	assert.Equal(t, "boom", apiErr.Message)
	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, types.ErrNotFound},
		{http.StatusBadRequest, types.ErrValidation},
		{http.StatusUnprocessableEntity, types.ErrConfig},
		{http.StatusInternalServerError, types.ErrStorage},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			assert.ErrorIs(t, &APIError{Code: tt.code}, tt.want)
		})
	}
}

func TestIsDaemonRunning(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "tabkeepd.pid")
	assert.False(t, IsDaemonRunning(pidPath))

	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644))
	assert.True(t, IsDaemonRunning(pidPath))

	require.NoError(t, os.WriteFile(pidPath, []byte("999999999"), 0o644))
	assert.False(t, IsDaemonRunning(pidPath))

	require.NoError(t, os.WriteFile(pidPath, []byte("garbage"), 0o644))
	assert.False(t, IsDaemonRunning(pidPath))
}

func TestStopDaemon_NotRunning(t *testing.T) {
	err := StopDaemon(context.Background(), DaemonPaths{PID: filepath.Join(t.TempDir(), "tabkeepd.pid")})
	assert.NoError(t, err)
}

func TestStartDaemon_AlreadyRunning(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "tabkeepd.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644))

	// No binary lookup happens when the PID file names a live process.
	addr, err := StartDaemon(context.Background(), DaemonPaths{
		PID:     pidPath,
		Binary:  "/does/not/exist",
		BaseURL: "http://127.0.0.1:7465",
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7465", addr)
}

func TestResolveBinary(t *testing.T) {
	_, err := resolveBinary(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	bin := filepath.Join(t.TempDir(), "tabkeepd")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	got, err := resolveBinary(bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestReadStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabkeepd.status")
	require.NoError(t, os.WriteFile(path, []byte(`{"status":"error","error":"bind failed"}`), 0o644))

	status, err := readStatusFile(path)
	require.NoError(t, err)
	assert.Equal(t, "error", status.Status)
	assert.Equal(t, "bind failed", status.Error)

	paths := DaemonPaths{PID: filepath.Join("/run/tabkeep", "tabkeepd.pid")}
	assert.Equal(t, filepath.Join("/run/tabkeep", "tabkeepd.status"), paths.statusPath())
}

func TestStartDaemon_ReportsStartupFailure(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "tabkeepd.pid")
	// Stands in for tabkeepd failing to bind: it writes the error status and exits.
	bin := filepath.Join(dir, "tabkeepd")
	script := "#!/bin/sh\nprintf '{\"status\":\"error\",\"error\":\"address in use\"}' > " +
		filepath.Join(dir, "tabkeepd.status") + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	_, err := StartDaemon(context.Background(), DaemonPaths{
		PID:     pidPath,
		Binary:  bin,
		BaseURL: "http://127.0.0.1:1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestWaitFor(t *testing.T) {
	calls := 0
	err := waitFor(context.Background(), time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = waitFor(context.Background(), 250*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, ErrDaemonTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = waitFor(ctx, time.Second, func(context.Context) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
