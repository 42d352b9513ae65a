package rescache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxBytes uint64) *Cache {
	t.Helper()
	c, err := Open(Config{
		RootDir:  t.TempDir(),
		Prefix:   "dap_",
		MaxBytes: maxBytes,
	}, NewUnixLockProvider(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheKeySanitizesSpecialCharacters(t *testing.T) {
	key := CacheKey("Sample", `mean(x,0),"region"`)
	assert.NotContains(t, key, "(")
	assert.NotContains(t, key, ")")
	assert.NotContains(t, key, ",")
	assert.NotContains(t, key, `"`)
	assert.NotContains(t, key, "/")
	assert.Contains(t, key, "Sample")
}

func TestPathForIsPureFunctionOfKeyAndRoot(t *testing.T) {
	c := newTestCache(t, 1<<20)
	key := CacheKey("Sample", "mean(x,0)")
	p1 := c.PathFor(key)
	p2 := c.PathFor(key)
	assert.Equal(t, p1, p2)
	assert.True(t, filepath.IsAbs(p1) || filepath.IsAbs(c.rootDir))
}

func TestEnabledReflectsMaxBytes(t *testing.T) {
	assert.True(t, newTestCache(t, 1024).Enabled())
	assert.False(t, newTestCache(t, 0).Enabled())
}

func TestCreateExclusiveThenReadLockStateMachine(t *testing.T) {
	c := newTestCache(t, 1<<20)
	path := c.PathFor(CacheKey("Sample", "mean(x,0)"))

	// Nothing exists yet: read lock fails.
	ok, _, err := c.TryReadLock(path)
	require.NoError(t, err)
	assert.False(t, ok)

	// First writer creates and exclusively locks.
	created, handle, err := c.TryCreateAndExclusiveLock(path)
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, handle)

	// A second creator must fail: the file now exists.
	created2, _, err := c.TryCreateAndExclusiveLock(path)
	require.NoError(t, err)
	assert.False(t, created2)

	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	require.NoError(t, c.DowngradeToShared(handle))
	require.NoError(t, c.UnlockAndClose(handle))

	ok, readHandle, err := c.TryReadLock(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.UnlockAndClose(readHandle))
}

func TestIsValidVirtualDatasetTreatedAsValid(t *testing.T) {
	c := newTestCache(t, 1<<20)
	path := filepath.Join(t.TempDir(), "entry")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.True(t, c.IsValid(path, filepath.Join(t.TempDir(), "does-not-exist")))
}

func TestIsValidFalseWhenEntryOlderThanDataset(t *testing.T) {
	c := newTestCache(t, 1<<20)
	dir := t.TempDir()
	entryPath := filepath.Join(dir, "entry")
	datasetPath := filepath.Join(dir, "dataset")

	require.NoError(t, os.WriteFile(entryPath, []byte("x"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(entryPath, old, old))
	require.NoError(t, os.WriteFile(datasetPath, []byte("y"), 0644))

	assert.False(t, c.IsValid(entryPath, datasetPath))
}

func TestIsValidFalseWhenEntryMissingOrEmpty(t *testing.T) {
	c := newTestCache(t, 1<<20)
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	assert.False(t, c.IsValid(missing, missing))
	assert.False(t, c.IsValid(empty, empty))
}

func TestUpdateSizeInfoAndEvictDownRespectsBudget(t *testing.T) {
	c := newTestCache(t, 10) // tiny budget forces eviction

	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(c.rootDir, string(rune('a'+i)))
		require.NoError(t, os.WriteFile(paths[i], []byte("0123456789"), 0644))
		// Space out mtimes so eviction order is deterministic.
		mt := time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, os.Chtimes(paths[i], mt, mt))
		_, err := c.UpdateSizeInfo(paths[i])
		require.NoError(t, err)
	}

	total, err := c.idx.Total()
	require.NoError(t, err)
	assert.True(t, c.TooBig(total))

	require.NoError(t, c.EvictDown(paths[2]))

	_, err = os.Stat(paths[0])
	assert.True(t, os.IsNotExist(err), "oldest entry should have been evicted")
	_, err = os.Stat(paths[2])
	assert.NoError(t, err, "excluded path must survive eviction")
}

func TestPurgeRemovesFileAndIndexEntry(t *testing.T) {
	c := newTestCache(t, 1<<20)
	path := filepath.Join(c.rootDir, "entry")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	_, err := c.UpdateSizeInfo(path)
	require.NoError(t, err)

	require.NoError(t, c.Purge(path))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	total, err := c.idx.Total()
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPurgeIsIdempotent(t *testing.T) {
	c := newTestCache(t, 1<<20)
	path := filepath.Join(c.rootDir, "never-existed")
	assert.NoError(t, c.Purge(path))
}
