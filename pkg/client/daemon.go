package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
)

// Lifecycle timeouts. The start budget covers opening badger and an initial
// reconcile of the snapshot directory.
const (
	startTimeout = 5 * time.Second
	stopTimeout  = 10 * time.Second
	pollEvery    = 100 * time.Millisecond
)

// ErrDaemonTimeout is returned when tabkeepd does not reach the expected
// state in time.
var ErrDaemonTimeout = errors.New("timed out waiting for tabkeepd")

// DaemonPaths locates the daemon binary and its runtime files. Empty fields
// use defaults.
type DaemonPaths struct {
	Binary     string // tabkeepd; discovered when empty
	PID        string
	ConfigFile string // passed as --config when set
	BaseURL    string
}

func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	if p.BaseURL == "" {
		p.BaseURL = "http://" + config.DefaultListenAddr
	}
	return p
}

// statusPath mirrors daemon.StatusPath without linking the daemon into the CLI.
func (p DaemonPaths) statusPath() string {
	return filepath.Join(filepath.Dir(p.PID), "tabkeepd.status")
}

// EnsureDaemon starts tabkeepd unless it is already running.
func EnsureDaemon(ctx context.Context, paths DaemonPaths) error {
	_, err := StartDaemon(ctx, paths)
	return err
}

// StartDaemon launches tabkeepd detached from this process and waits until
// it reports ready. It returns the address the daemon serves on, which is
// the configured one when the daemon was already running.
func StartDaemon(ctx context.Context, paths DaemonPaths) (string, error) {
	paths = paths.withDefaults()
	if IsDaemonRunning(paths.PID) {
		return strings.TrimPrefix(paths.BaseURL, "http://"), nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return "", fmt.Errorf("find tabkeepd: %w", err)
	}

	status := paths.statusPath()
	if err := os.Remove(status); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("clear stale status: %w", err)
	}

	var args []string
	if paths.ConfigFile != "" {
		args = append(args, "--config", paths.ConfigFile)
	}
	// exec.Command, not CommandContext: the daemon outlives the CLI.
	cmd := exec.Command(binary, args...) //nolint:gosec // resolved above
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start tabkeepd: %w", err)
	}
	_ = cmd.Process.Release()

	var addr string
	c := New(paths.BaseURL)
	err = waitFor(ctx, startTimeout, func(ctx context.Context) (bool, error) {
		if st, err := readStatusFile(status); err == nil {
			switch st.Status {
			case "ready":
				addr = st.Addr
				return true, nil
			case "error":
				return false, fmt.Errorf("tabkeepd failed to start: %s", st.Error)
			}
		}
		// An older daemon build may not write the status file.
		return c.Ping(ctx), nil
	})
	if err != nil {
		return "", err
	}
	if addr == "" {
		addr = strings.TrimPrefix(paths.BaseURL, "http://")
	}
	return addr, nil
}

// StopDaemon asks tabkeepd to shut down and waits for its PID to go away.
// Stopping a daemon that is not running is not an error.
func StopDaemon(ctx context.Context, paths DaemonPaths) error {
	paths = paths.withDefaults()
	if !IsDaemonRunning(paths.PID) {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := New(paths.BaseURL).Shutdown(reqCtx); err != nil {
		return fmt.Errorf("shutdown tabkeepd: %w", err)
	}

	return waitFor(ctx, stopTimeout, func(context.Context) (bool, error) {
		return !IsDaemonRunning(paths.PID), nil
	})
}

// RestartDaemon stops tabkeepd if it runs and starts it again.
func RestartDaemon(ctx context.Context, paths DaemonPaths) (string, error) {
	if err := StopDaemon(ctx, paths); err != nil {
		return "", fmt.Errorf("stop: %w", err)
	}
	addr, err := StartDaemon(ctx, paths)
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	return addr, nil
}

// waitFor polls done until it reports true, fails, or the timeout passes.
func waitFor(ctx context.Context, timeout time.Duration, done func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(pollEvery)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrDaemonTimeout
			}
			return ctx.Err()
		case <-tick.C:
		}
		ok, err := done(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// resolveBinary finds tabkeepd: the configured path, then next to the
// running executable, then GOBIN/GOPATH, then PATH.
func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary: %w", err)
		}
		return configured, nil
	}

	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "tabkeepd")
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	if p := config.DefaultBinaryPath(); p != "" {
		return p, nil
	}
	return exec.LookPath("tabkeepd")
}

// IsDaemonRunning reports whether the PID file names a live process.
func IsDaemonRunning(pidPath string) bool {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	// FindProcess always succeeds on unix; signal 0 checks liveness.
	p, _ := os.FindProcess(pid)
	return p.Signal(syscall.Signal(0)) == nil
}

type startupStatus struct {
	Status string `json:"status"`
	Addr   string `json:"addr,omitempty"`
	Error  string `json:"error,omitempty"`
}

func readStatusFile(path string) (*startupStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st startupStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
