package metrics

import "time"

// CacheMetrics records function-result cache (internal/rescache) activity:
// hit/miss/write/eviction counts and byte volumes.
type CacheMetrics interface {
	// ObserveWrite records a cache entry being materialized and written.
	ObserveWrite(bytes int64, duration time.Duration)
	// ObserveRead records a cache read, hit or miss.
	ObserveRead(bytes int64, duration time.Duration, hit bool)
	// RecordEviction records an entry being evicted. reason is one of
	// "size_limit", "invalid", "explicit".
	RecordEviction(reason string)
	// RecordTotalSize records the cache's total size on disk after a write
	// or eviction pass.
	RecordTotalSize(bytes int64)
}

// newPrometheusCacheMetrics is wired by pkg/metrics/prometheus/cache.go's
// init, mirroring the indirection used for builder metrics in builder.go —
// it lets the concrete collectors in pkg/metrics/prometheus implement this
// package's interfaces without an import cycle.
var newPrometheusCacheMetrics func() CacheMetrics

// RegisterCacheMetricsConstructor is called by pkg/metrics/prometheus
// during init to supply the concrete constructor.
func RegisterCacheMetricsConstructor(constructor func() CacheMetrics) {
	newPrometheusCacheMetrics = constructor
}

// NewCacheMetrics returns a CacheMetrics instance, or nil if InitRegistry
// was never called. A nil CacheMetrics is safe to pass to this package's
// wrappers (ObserveWrite, ObserveRead, RecordEviction, RecordTotalSize),
// which skip recording; calling its methods directly on nil panics.
func NewCacheMetrics() CacheMetrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// ObserveWrite is a nil-safe wrapper for CacheMetrics.ObserveWrite.
func ObserveWrite(m CacheMetrics, bytes int64, duration time.Duration) {
	if m != nil {
		m.ObserveWrite(bytes, duration)
	}
}

// ObserveRead is a nil-safe wrapper for CacheMetrics.ObserveRead.
func ObserveRead(m CacheMetrics, bytes int64, duration time.Duration, hit bool) {
	if m != nil {
		m.ObserveRead(bytes, duration, hit)
	}
}

// RecordEviction is a nil-safe wrapper for CacheMetrics.RecordEviction.
func RecordEviction(m CacheMetrics, reason string) {
	if m != nil {
		m.RecordEviction(reason)
	}
}

// RecordTotalSize is a nil-safe wrapper for CacheMetrics.RecordTotalSize.
func RecordTotalSize(m CacheMetrics, bytes int64) {
	if m != nil {
		m.RecordTotalSize(bytes)
	}
}
