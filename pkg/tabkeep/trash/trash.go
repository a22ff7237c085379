// Package trash removes snapshot files, moving them to the system trash
// where available and falling back to permanent deletion otherwise.
package trash

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// commandTimeout is the maximum time to wait for trash commands.
const commandTimeout = 30 * time.Second

// Remove deletes path. With useTrash set the file is moved to the system
// trash instead. A path that does not exist is not an error.
func Remove(ctx context.Context, path string, useTrash bool) error {
	if !useTrash {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %q: %w", path, err)
		}
		return nil
	}

	err := MoveToTrash(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MoveToTrash moves a file to the system trash.
// On macOS: uses AppleScript to move to Trash.
// On Linux: uses gio trash or trash-cli.
// Falls back to permanent delete if no trash is available.
func MoveToTrash(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot trash %q: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch runtime.GOOS {
	case "darwin":
		return moveToTrashMacOS(ctx, absPath)
	case "linux":
		return moveToTrashLinux(ctx, absPath)
	default:
		return fallbackDelete(absPath)
	}
}

// moveToTrashMacOS keeps Finder's "Put Back" working.
func moveToTrashMacOS(ctx context.Context, path string) error {
	script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, path)
	if err := exec.CommandContext(ctx, "osascript", "-e", script).Run(); err != nil {
		return fallbackDelete(path)
	}
	return nil
}

func moveToTrashLinux(ctx context.Context, path string) error {
	// gio covers GNOME/GTK desktops, trash-put the XDG trash elsewhere.
	for _, tool := range [][]string{{"gio", "trash"}, {"trash-put"}} {
		bin, err := exec.LookPath(tool[0])
		if err != nil {
			continue
		}
		args := append(tool[1:], path)
		if err := exec.CommandContext(ctx, bin, args...).Run(); err == nil {
			return nil
		}
	}

	return fallbackDelete(path)
}

func fallbackDelete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %q: %w", path, err)
	}
	return nil
}
