package async

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the index lock inside the data directory.
const LockFileName = "index.lock"

// IndexLock keeps two processes from indexing the same data directory at
// once.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates the lock for dataDir.
func NewIndexLock(dataDir string) *IndexLock {
	path := filepath.Join(dataDir, LockFileName)
	return &IndexLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. False means another holder
// has it.
func (l *IndexLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. It is safe to call on an unlocked lock.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.path
}
