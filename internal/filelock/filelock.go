// Package filelock provides exclusive, process-wide access to transcript
// output files so concurrent streamfmt runs never interleave their output.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the output lock.
var ErrLocked = errors.New("output file is locked by another process")

// FileLock wraps a flock file lock for coordinating access to files.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock for the given path.
// The lock file will be created at the specified path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Lock acquires an exclusive lock on the file, blocking until the lock is available.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire an exclusive lock on the file without blocking.
// Returns true if the lock was acquired, false if the lock is held by another process.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// LockedFile is an output file opened for appending while holding its
// "<path>.lock" companion lock.
type LockedFile struct {
	*os.File
	lock *FileLock
}

// OpenAppend opens path for appending under an exclusive lock. It does not
// wait: if another process holds the lock, ErrLocked is returned.
//
// The lock path is derived by appending ".lock" to the target path.
// Example: writing to "session.log" uses lock file "session.log.lock"
func OpenAppend(path string) (*LockedFile, error) {
	return openLocked(path, func(lock *FileLock) error {
		acquired, err := lock.TryLock()
		if err != nil {
			return err
		}
		if !acquired {
			return fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil
	})
}

// OpenAppendWait is OpenAppend, but blocks until the lock is free.
func OpenAppendWait(path string) (*LockedFile, error) {
	return openLocked(path, (*FileLock).Lock)
}

func openLocked(path string, acquire func(*FileLock) error) (*LockedFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	lock := NewFileLock(path + ".lock")
	if err := acquire(lock); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to open output file %s: %w", path, err)
	}

	return &LockedFile{File: file, lock: lock}, nil
}

// Close syncs and closes the file, then releases the lock.
func (lf *LockedFile) Close() error {
	syncErr := lf.File.Sync()
	closeErr := lf.File.Close()
	unlockErr := lf.lock.Unlock()
	return errors.Join(syncErr, closeErr, unlockErr)
}
