package rescache

import (
	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/dapserve/internal/logger"
)

// Watch starts an optional fsnotify watch on the cache root so that
// out-of-band removals (an operator deleting a file directly, a crashed
// process's partial write being cleaned up) get their index entry evicted
// promptly instead of only at the next write-triggered eviction pass.
//
// This is a pure optimization: IsValid's stat comparison is always the
// authoritative check, so a missed or delayed event here never causes a
// correctness problem, only a temporarily stale total-size figure. The
// returned stop function shuts the watch down; callers should defer it.
func (c *Cache) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(c.rootDir); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := c.idx.Remove(ev.Name); err != nil {
						logger.Warn("rescache: failed to evict index entry after external removal",
							"path", ev.Name, "error", err)
					}
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("rescache: watch error", "error", werr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		w.Close()
	}, nil
}
