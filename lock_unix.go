//go:build !windows

package hy3dtools

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// fileLock guards cross-process access to copied.json using flock()
// advisory locking on Unix systems.
type fileLock struct {
	// file is the lock file handle.
	file *os.File

	// timeout is the maximum duration to wait for lock acquisition.
	timeout time.Duration

	// locked tracks whether the lock is currently held.
	locked bool
}

// newFileLock creates a lock for the given path, creating the lock file if
// it doesn't exist.
func newFileLock(path string, timeout time.Duration) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	return &fileLock{
		file:    file,
		timeout: timeout,
	}, nil
}

// Lock acquires an exclusive advisory lock.
// Polls the non-blocking flock with backoff until the timeout expires.
func (l *fileLock) Lock() error {
	if l.locked {
		return nil
	}

	deadline := time.Now().Add(l.timeout)
	sleepDuration := 10 * time.Millisecond

	for {
		err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.locked = true
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock timeout after %v", l.timeout)
		}

		time.Sleep(sleepDuration)
		if sleepDuration < 100*time.Millisecond {
			sleepDuration *= 2
		}
	}
}

// Unlock releases the advisory lock and closes the file handle.
// Safe to call multiple times.
func (l *fileLock) Unlock() error {
	if !l.locked {
		if l.file != nil {
			l.file.Close()
			l.file = nil
		}
		return nil
	}

	var unlockErr error
	if l.file != nil {
		unlockErr = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		l.file = nil
	}
	l.locked = false

	return unlockErr
}
