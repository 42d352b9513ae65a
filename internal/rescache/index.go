package rescache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// entryMeta is the value stored per cache path in the Badger index: the
// size and mtime recorded the last time updateSizeInfo observed the file.
// Persisting this instead of re-stat-ing every file in the cache directory
// on every eviction pass keeps evictDown O(entries) instead of O(disk).
type entryMeta struct {
	Size  uint64    `json:"size"`
	Mtime time.Time `json:"mtime"`
}

// index is the Badger-backed (path, size, mtime) index for one cache
// directory, keyed by the cache file's path.
type index struct {
	db *badger.DB
}

// openIndex opens (creating if absent) the Badger database used as the
// cache's size/mtime index, at <rootDir>/.index.
func openIndex(dir string) (*index, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache index at %s: %w", dir, err)
	}
	return &index{db: db}, nil
}

func (x *index) Close() error {
	return x.db.Close()
}

// Put records or updates the metadata for path.
func (x *index) Put(path string, size uint64, mtime time.Time) error {
	value, err := json.Marshal(entryMeta{Size: size, Mtime: mtime})
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	return x.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), value)
	})
}

// Remove deletes path's metadata, if present.
func (x *index) Remove(path string) error {
	return x.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Total sums the size of every indexed entry.
func (x *index) Total() (uint64, error) {
	var total uint64
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var meta entryMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return err
				}
				total += meta.Size
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sum index entries: %w", err)
	}
	return total, nil
}

// indexEntry pairs a path with its recorded metadata, returned by
// OldestFirst for eviction ordering.
type indexEntry struct {
	Path string
	Meta entryMeta
}

// OldestFirst returns every indexed entry except excluding, sorted ascending
// by mtime — the order evictDown removes entries in.
func (x *index) OldestFirst(excluding string) ([]indexEntry, error) {
	var entries []indexEntry
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := string(item.KeyCopy(nil))
			if path == excluding {
				continue
			}
			var meta entryMeta
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				return err
			}
			entries = append(entries, indexEntry{Path: path, Meta: meta})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list index entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Meta.Mtime.Before(entries[j].Meta.Mtime)
	})
	return entries, nil
}
