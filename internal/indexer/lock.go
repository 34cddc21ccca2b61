package indexer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// AreaLock is the cross-process single-writer lock for one area's shard.
// Readers never take it; concurrent indexer runs (CLI and background)
// serialize on it.
type AreaLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewAreaLock creates the lock for an area. The lock file lives next to
// the shard files as <dir>/.index_<area>.lock.
func NewAreaLock(dir, area string) *AreaLock {
	path := filepath.Join(dir, ".index_"+area+".lock")
	return &AreaLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another process holds it.
func (l *AreaLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked AreaLock.
func (l *AreaLock) Unlock() error {
	if !l.locked {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("release lock: %w", err)
	}

	l.locked = false
	return nil
}

// Path returns the lock file path.
func (l *AreaLock) Path() string {
	return l.path
}

// IsLocked reports whether this process holds the lock.
func (l *AreaLock) IsLocked() bool {
	return l.locked
}
