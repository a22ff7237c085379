package daemon

import (
	"os"
	"path/filepath"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
)

// RecoverFromStaleDaemon removes the PID file, status file and badger
// directory lock left behind by a daemon that died without cleaning up.
// It returns ErrDaemonAlreadyRunning if the recorded process is alive.
func RecoverFromStaleDaemon(pidPath, statusPath, dbPath string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		// Missing or unreadable PID file: nothing to recover.
		return nil //nolint:nilerr
	}

	if IsProcessRunning(pid) {
		return ErrDaemonAlreadyRunning
	}

	logging.Get("daemon").Warn("cleaning up stale daemon files", "stale_pid", pid, "db", dbPath)

	_ = os.Remove(pidPath)
	_ = os.Remove(statusPath)
	_ = os.Remove(filepath.Join(dbPath, "LOCK"))

	return nil
}
