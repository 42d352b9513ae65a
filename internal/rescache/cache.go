// Package rescache implements the disk-backed, process-shared cache of
// materialized server-function results (C6 FunctionResultCache): advisory
// file locking, a size budget, and LRU-by-mtime eviction.
package rescache

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/marmos91/dapserve/pkg/metrics"
)

// snapSuffix is the gob-snapshot sidecar extension responsebuilder writes
// alongside every cache entry (see responsebuilder/cache_entry.go's
// snapshotPath); Purge, EvictDown, and UpdateSizeInfo all need to know about
// it even though this package never writes the file itself.
const snapSuffix = ".snap"

// Config mirrors the enumerated cache configuration from spec.md §6.
type Config struct {
	RootDir  string
	Prefix   string
	MaxBytes uint64
}

// Cache is a process-shared, disk-backed cache mapping a cache key to a
// file on disk, per spec.md §4.6.
type Cache struct {
	rootDir  string
	prefix   string
	maxBytes uint64
	lock     LockProvider
	idx      *index
	metrics  metrics.CacheMetrics
}

// Open opens (creating if absent) a Cache rooted at cfg.RootDir. lock must
// not be nil; pass metrics.NewCacheMetrics() for m to enable Prometheus
// recording, or nil for zero overhead.
func Open(cfg Config, lock LockProvider, m metrics.CacheMetrics) (*Cache, error) {
	if lock == nil {
		return nil, fmt.Errorf("rescache: lock provider is required")
	}
	if err := os.MkdirAll(cfg.RootDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache root %s: %w", cfg.RootDir, err)
	}

	idxDir := cfg.RootDir + "/.index"
	idx, err := openIndex(idxDir)
	if err != nil {
		return nil, err
	}

	return &Cache{
		rootDir:  cfg.RootDir,
		prefix:   sanitizedPrefix(cfg.Prefix),
		maxBytes: cfg.MaxBytes,
		lock:     lock,
		idx:      idx,
		metrics:  m,
	}, nil
}

// Close releases the cache's index database.
func (c *Cache) Close() error {
	return c.idx.Close()
}

// Enabled reports whether caching is active. A zero MaxBytes disables
// caching entirely: every functional CE re-evaluates (spec.md §8 Boundary).
func (c *Cache) Enabled() bool {
	return c.maxBytes > 0
}

var cacheKeySanitizer = regexp.MustCompile(`[/(),"']`)

// CacheKey builds the cache key for a dataset name and function sub-CE, per
// spec.md §3: datasetName + "#" + funcSubCE, with every character in
// `/(),"'` replaced by '#'.
func CacheKey(datasetName, funcSubCE string) string {
	raw := datasetName + "#" + funcSubCE
	return cacheKeySanitizer.ReplaceAllString(raw, "#")
}

// PathFor is a pure function of key and the cache root, per spec.md §4.6.
func (c *Cache) PathFor(key string) string {
	return c.rootDir + "/" + c.prefix + key
}

// TryReadLock attempts a non-blocking shared lock on an existing entry.
func (c *Cache) TryReadLock(path string) (bool, LockHandle, error) {
	return c.lock.TryReadLock(path)
}

// TryCreateAndExclusiveLock creates path only if absent and takes an
// exclusive lock on it.
func (c *Cache) TryCreateAndExclusiveLock(path string) (bool, LockHandle, error) {
	return c.lock.TryCreateAndExclusiveLock(path)
}

// DowngradeToShared atomically converts an exclusive lock to shared.
func (c *Cache) DowngradeToShared(h LockHandle) error {
	return c.lock.DowngradeToShared(h)
}

// UnlockAndClose releases h.
func (c *Cache) UnlockAndClose(h LockHandle) error {
	return c.lock.UnlockAndClose(h)
}

// Purge deletes the cache file at path, its ".snap" gob sidecar (see
// cache_entry.go), and path's index entry. Safe to call while other holders
// have shared locks open: on POSIX, unlinking a path does not disturb file
// descriptors already open on it, so readers in progress are never broken.
func (c *Cache) Purge(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("purge %s: %w", path, err)
	}
	if err := os.Remove(path + snapSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("purge %s: %w", path+snapSuffix, err)
	}
	if err := c.idx.Remove(path); err != nil {
		return fmt.Errorf("purge index entry for %s: %w", path, err)
	}
	return nil
}

// UpdateSizeInfo stats path and its ".snap" sidecar, records their combined
// size and path's mtime in the index, and returns the cache's new total size
// across all entries.
func (c *Cache) UpdateSizeInfo(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	size := uint64(info.Size())
	if snapInfo, err := os.Stat(path + snapSuffix); err == nil {
		size += uint64(snapInfo.Size())
	}
	if err := c.idx.Put(path, size, info.ModTime()); err != nil {
		return 0, err
	}
	total, err := c.idx.Total()
	if err != nil {
		return 0, err
	}
	metrics.RecordTotalSize(c.metrics, int64(total))
	return total, nil
}

// TooBig reports whether total exceeds the configured budget.
func (c *Cache) TooBig(total uint64) bool {
	return c.maxBytes > 0 && total > c.maxBytes
}

// EvictDown removes entries in ascending mtime order, skipping excluding,
// until the cache is back under budget.
func (c *Cache) EvictDown(excluding string) error {
	entries, err := c.idx.OldestFirst(excluding)
	if err != nil {
		return err
	}

	total, err := c.idx.Total()
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !c.TooBig(total) {
			break
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("evict %s: %w", e.Path, err)
		}
		if err := os.Remove(e.Path + snapSuffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("evict %s: %w", e.Path+snapSuffix, err)
		}
		if err := c.idx.Remove(e.Path); err != nil {
			return err
		}
		total -= e.Meta.Size
		metrics.RecordEviction(c.metrics, "size_limit")
	}

	metrics.RecordTotalSize(c.metrics, int64(total))
	return nil
}

// IsValid reports whether the cache entry at path exists, is nonzero in
// size, and is at least as new as datasetPath — true also when datasetPath
// cannot be stat'd (a virtual dataset), per spec.md §4.6 and the open
// question in §9 (preserved as-is).
func (c *Cache) IsValid(path, datasetPath string) bool {
	entryInfo, err := os.Stat(path)
	if err != nil || entryInfo.Size() == 0 {
		return false
	}

	datasetInfo, err := os.Stat(datasetPath)
	if err != nil {
		// Dataset cannot be stat'd (virtual dataset): treat as valid.
		return true
	}

	return !entryInfo.ModTime().Before(datasetInfo.ModTime())
}

// Metrics returns the CacheMetrics this cache reports to, or nil if metrics
// are disabled. The ResponseBuilder uses this to time the evaluate-and-write
// and read paths, which live outside this package's api.
func (c *Cache) Metrics() metrics.CacheMetrics {
	return c.metrics
}

// sanitizedPrefix strips path separators from a configured prefix so a
// misconfigured value can't escape the cache root.
func sanitizedPrefix(prefix string) string {
	return strings.ReplaceAll(prefix, "/", "_")
}
