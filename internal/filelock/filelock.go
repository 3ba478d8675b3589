// Package filelock guards the project home against concurrent orchestrator
// processes and provides atomic file writes.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName lives inside the project home directory.
const lockFileName = "orchestrator.lock"

// HomeGuard holds the exclusive process lock on a project home.
type HomeGuard struct {
	flock *flock.Flock
	path  string
}

// AcquireHome takes the exclusive lock for the given home directory without
// blocking. A second orchestrator on the same home gets an error naming the
// lock file, not a hang.
func AcquireHome(home string) (*HomeGuard, error) {
	path := filepath.Join(home, lockFileName)
	fl := flock.New(path)

	acquired, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock on %s: %w", path, err)
	}
	if !acquired {
		return nil, fmt.Errorf("another orchestrator holds %s", path)
	}
	return &HomeGuard{flock: fl, path: path}, nil
}

// Release drops the lock. Safe to call once the run is over.
func (g *HomeGuard) Release() error {
	if err := g.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock on %s: %w", g.path, err)
	}
	return nil
}

// AtomicWrite writes data through a temp file and rename so readers never
// observe a partial write. The temp file is created next to the target to
// keep the rename on one filesystem.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}
