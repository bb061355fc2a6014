package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// FileLock is a non-blocking advisory lock backed by flock(2), the Go
// idiom for the job Python's `filelock.FileLock` does (golang.org/x/sys is
// already part of the retrieved corpus's transitive dependency graph). It
// is used exactly the way flowfish.node.Node._lock uses filelock: probe
// once, log if contended, then release -- the lock is never held across
// the actual call, only used as a best-effort "is someone else already
// working on this" signal.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns a lock bound to path without acquiring it.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to acquire the lock without blocking. It reports
// whether the lock is already held by someone else (true = contended).
func (l *FileLock) TryLock() (contended bool, err error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return true, nil
		}
		return false, fmt.Errorf("flock %s: %w", l.path, err)
	}
	l.file = f
	return false, nil
}

// Unlock releases the lock, a no-op if it was never acquired.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
	l.file = nil
	return err
}
