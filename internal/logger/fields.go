package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Request Identification
	// ========================================================================
	KeyDataset  = "dataset"  // Dataset name the request targets
	KeyCE       = "ce"       // Raw constraint expression
	KeyFuncCE   = "func_ce"  // Function sub-constraint (see dapmodel.SplitCE)
	KeyResidual = "residual" // Residual sub-constraint after function split
	KeyKind     = "kind"     // Response kind: das, dds, ddx, data-dds, data-ddx
	KeyProtocol = "protocol" // Negotiated protocol version keyword

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP = "client_ip" // Client IP address

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code (dapcode.ErrorCode)
	KeySize       = "size"        // Estimated or actual response size, in bytes

	// ========================================================================
	// Function Result Cache
	// ========================================================================
	KeyCacheKey   = "cache_key"   // Cache entry key (dataset#funcCE, sanitized)
	KeyCachePath  = "cache_path"  // Cache entry path on disk
	KeyCacheHit   = "cache_hit"   // Cache hit indicator
	KeyCacheState = "cache_state" // Cache entry state: valid, stale, missing
	KeyCacheSize  = "cache_size"  // Current cache total size
	KeyEvicted    = "evicted"     // Number of entries evicted

	// ========================================================================
	// Timeout Controller
	// ========================================================================
	KeyTimeoutSeconds = "timeout_seconds" // Configured timeout, in seconds
	KeyTimeoutFired   = "timeout_fired"   // Whether the deadline had already fired
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Dataset returns a slog.Attr for the dataset name
func Dataset(name string) slog.Attr {
	return slog.String(KeyDataset, name)
}

// CE returns a slog.Attr for a raw constraint expression
func CE(ce string) slog.Attr {
	return slog.String(KeyCE, ce)
}

// FuncCE returns a slog.Attr for a function sub-constraint
func FuncCE(ce string) slog.Attr {
	return slog.String(KeyFuncCE, ce)
}

// Residual returns a slog.Attr for a residual sub-constraint
func Residual(ce string) slog.Attr {
	return slog.String(KeyResidual, ce)
}

// Kind returns a slog.Attr for a response kind
func Kind(kind string) slog.Attr {
	return slog.String(KeyKind, kind)
}

// Protocol returns a slog.Attr for a protocol version keyword
func Protocol(proto string) slog.Attr {
	return slog.String(KeyProtocol, proto)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Size returns a slog.Attr for a response size, in bytes
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// CacheKey returns a slog.Attr for a cache entry key
func CacheKey(key string) slog.Attr {
	return slog.String(KeyCacheKey, key)
}

// CachePath returns a slog.Attr for a cache entry path
func CachePath(path string) slog.Attr {
	return slog.String(KeyCachePath, path)
}

// CacheHit returns a slog.Attr for cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheState returns a slog.Attr for cache entry state
func CacheState(state string) slog.Attr {
	return slog.String(KeyCacheState, state)
}

// CacheSize returns a slog.Attr for current cache size
func CacheSize(size int64) slog.Attr {
	return slog.Int64(KeyCacheSize, size)
}

// Evicted returns a slog.Attr for number of entries evicted
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// TimeoutSeconds returns a slog.Attr for a configured timeout
func TimeoutSeconds(seconds int) slog.Attr {
	return slog.Int(KeyTimeoutSeconds, seconds)
}

// TimeoutFired returns a slog.Attr for whether a deadline had fired
func TimeoutFired(fired bool) slog.Attr {
	return slog.Bool(KeyTimeoutFired, fired)
}
