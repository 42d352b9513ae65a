//go:build unix

package rescache

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// unixLockHandle is the unix LockProvider's LockHandle: an open file plus
// the path it was opened from (needed because *os.File doesn't expose the
// name it was opened with in a stable way across renames).
type unixLockHandle struct {
	f    *os.File
	path string
}

func (h *unixLockHandle) Path() string { return h.path }

// UnixLockProvider backs LockProvider with flock(2) via golang.org/x/sys/unix.
// No library in the example pack offers advisory file locking; x/sys/unix is
// the standard ecosystem way to reach flock(2) from Go, and it is already a
// real (indirect) dependency of the teacher repository.
type UnixLockProvider struct{}

// NewUnixLockProvider returns a LockProvider backed by flock(2).
func NewUnixLockProvider() *UnixLockProvider {
	return &UnixLockProvider{}
}

func (UnixLockProvider) TryReadLock(path string) (bool, LockHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("open %s for read lock: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("flock %s shared: %w", path, err)
	}

	return true, &unixLockHandle{f: f, path: path}, nil
}

func (UnixLockProvider) TryCreateAndExclusiveLock(path string) (bool, LockHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("create %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		os.Remove(path)
		return false, nil, fmt.Errorf("flock %s exclusive: %w", path, err)
	}

	return true, &unixLockHandle{f: f, path: path}, nil
}

func (UnixLockProvider) DowngradeToShared(handle LockHandle) error {
	h, ok := handle.(*unixLockHandle)
	if !ok {
		return fmt.Errorf("rescache: handle from a different LockProvider")
	}
	if err := unix.Flock(int(h.f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return fmt.Errorf("downgrade %s to shared: %w", h.path, err)
	}
	return nil
}

func (UnixLockProvider) UnlockAndClose(handle LockHandle) error {
	h, ok := handle.(*unixLockHandle)
	if !ok {
		return fmt.Errorf("rescache: handle from a different LockProvider")
	}
	unix.Flock(int(h.f.Fd()), unix.LOCK_UN)
	return h.f.Close()
}
