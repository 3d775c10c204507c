//go:build windows

package hy3dtools

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// fileLock guards cross-process access to copied.json using LockFileEx()
// mandatory locking on Windows.
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

// Lock acquires an exclusive mandatory lock.
// Polls the fail-immediately variant with backoff until the timeout expires.
func (l *fileLock) Lock() error {
	if l.locked {
		return nil
	}

	deadline := time.Now().Add(l.timeout)
	sleepDuration := 10 * time.Millisecond

	for {
		err := windows.LockFileEx(
			windows.Handle(l.file.Fd()),
			windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
			0,
			1, 0,
			&windows.Overlapped{},
		)
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

// Unlock releases the mandatory lock and closes the file handle.
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
		unlockErr = windows.UnlockFileEx(
			windows.Handle(l.file.Fd()),
			0,
			1, 0,
			&windows.Overlapped{},
		)
		l.file.Close()
		l.file = nil
	}
	l.locked = false

	return unlockErr
}
