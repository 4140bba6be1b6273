// Package lock provides a cross-process advisory file lock used to
// enforce the Metadata Store's single-writer contract (§4.6, §5): two
// build_index runs against the same store path must not interleave
// writes.
package lock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// FileLock is a blocking, re-entrant-safe wrapper around an advisory
// file lock held for the lifetime of a writer session.
type FileLock struct {
	fl *flock.Flock
}

// New returns a FileLock backed by the lock file at path. The file is
// created on first Lock call if it does not already exist.
func New(path string) (*FileLock, error) {
	return &FileLock{fl: flock.New(path)}, nil
}

// Lock blocks until the advisory lock is acquired.
func (l *FileLock) Lock() error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("lock: acquire %s: %w", l.fl.Path(), err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking, reporting
// whether it succeeded.
func (l *FileLock) TryLock() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock: try %s: %w", l.fl.Path(), err)
	}
	return ok, nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	return l.fl.Unlock()
}

// Close unlocks and releases the underlying file handle.
func (l *FileLock) Close() error {
	return l.fl.Close()
}
