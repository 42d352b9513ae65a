package rescache

// LockHandle is an opaque advisory lock held on one cache file. Its zero
// value is never valid; handles are only produced by a LockProvider's
// TryReadLock/TryCreateAndExclusiveLock.
type LockHandle interface {
	// Path is the cache file path this handle locks.
	Path() string
}

// LockProvider is the portability seam for advisory file locking (design
// note: "the POSIX advisory-lock semantics used here have no exact
// analogue on every OS"). The cache's state machine in §4.6 is written
// entirely against this interface; a platform supplies the backing
// implementation.
type LockProvider interface {
	// TryReadLock attempts a non-blocking shared lock on an existing file at
	// path. acquired is false if the file does not exist or is exclusively
	// locked by another holder.
	TryReadLock(path string) (acquired bool, handle LockHandle, err error)

	// TryCreateAndExclusiveLock creates path only if it does not already
	// exist and takes an exclusive lock on it in the same step. created is
	// false if the file already exists (regardless of who holds what lock
	// on it).
	TryCreateAndExclusiveLock(path string) (created bool, handle LockHandle, err error)

	// DowngradeToShared atomically converts an exclusive lock to a shared
	// one without ever leaving the file unlocked.
	DowngradeToShared(handle LockHandle) error

	// UnlockAndClose releases handle's lock and closes its underlying file
	// descriptor.
	UnlockAndClose(handle LockHandle) error
}
