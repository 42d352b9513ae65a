//go:build !unix

package rescache

import "fmt"

// UnixLockProvider is unavailable on non-unix platforms; flock(2) has no
// direct analogue there. Construct a platform-specific LockProvider instead.
type UnixLockProvider struct{}

func NewUnixLockProvider() *UnixLockProvider { return &UnixLockProvider{} }

var errUnsupportedPlatform = fmt.Errorf("rescache: advisory file locking is not implemented on this platform")

func (UnixLockProvider) TryReadLock(path string) (bool, LockHandle, error) {
	return false, nil, errUnsupportedPlatform
}

func (UnixLockProvider) TryCreateAndExclusiveLock(path string) (bool, LockHandle, error) {
	return false, nil, errUnsupportedPlatform
}

func (UnixLockProvider) DowngradeToShared(handle LockHandle) error {
	return errUnsupportedPlatform
}

func (UnixLockProvider) UnlockAndClose(handle LockHandle) error {
	return errUnsupportedPlatform
}
