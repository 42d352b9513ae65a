package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dapserve/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(newCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of metrics.CacheMetrics for
// the function-result cache.
type cacheMetrics struct {
	writeOperations prometheus.Counter
	writeDuration   prometheus.Histogram
	writeBytes      prometheus.Histogram
	readOperations  *prometheus.CounterVec
	readDuration    prometheus.Histogram
	readBytes       prometheus.Histogram
	totalCacheSize  prometheus.Gauge
	evictions       *prometheus.CounterVec
}

func newCacheMetrics() metrics.CacheMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	durationBuckets := []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000}
	byteBuckets := []float64{4096, 32768, 131072, 524288, 1048576, 4194304, 10485760}

	return &cacheMetrics{
		writeOperations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dapserve_rescache_write_operations_total",
			Help: "Total number of function-result cache writes (evaluator cache misses).",
		}),
		writeDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dapserve_rescache_write_duration_milliseconds",
			Help:    "Duration of function evaluation + cache write, in milliseconds.",
			Buckets: durationBuckets,
		}),
		writeBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dapserve_rescache_write_bytes",
			Help:    "Size of materialized DataDDX cache entries in bytes.",
			Buckets: byteBuckets,
		}),
		readOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dapserve_rescache_read_operations_total",
			Help: "Total number of function-result cache reads by status.",
		}, []string{"status"}), // "hit", "miss"
		readDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dapserve_rescache_read_duration_milliseconds",
			Help:    "Duration of function-result cache reads, in milliseconds.",
			Buckets: durationBuckets,
		}),
		readBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dapserve_rescache_read_bytes",
			Help:    "Size of cache entries read from disk, in bytes.",
			Buckets: byteBuckets,
		}),
		totalCacheSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dapserve_rescache_total_size_bytes",
			Help: "Total size of the function-result cache directory in bytes.",
		}),
		evictions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dapserve_rescache_evictions_total",
			Help: "Total number of cache entries evicted, by reason.",
		}, []string{"reason"}), // "size_limit", "invalid", "explicit"
	}
}

func (m *cacheMetrics) ObserveWrite(bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.writeOperations.Inc()
	m.writeDuration.Observe(float64(duration.Microseconds()) / 1000.0)
	if bytes > 0 {
		m.writeBytes.Observe(float64(bytes))
	}
}

func (m *cacheMetrics) ObserveRead(bytes int64, duration time.Duration, hit bool) {
	if m == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	m.readOperations.WithLabelValues(status).Inc()
	m.readDuration.Observe(float64(duration.Microseconds()) / 1000.0)
	if bytes > 0 {
		m.readBytes.Observe(float64(bytes))
	}
}

func (m *cacheMetrics) RecordEviction(reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(reason).Inc()
}

func (m *cacheMetrics) RecordTotalSize(bytes int64) {
	if m == nil {
		return
	}
	m.totalCacheSize.Set(float64(bytes))
}
