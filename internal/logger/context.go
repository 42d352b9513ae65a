package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single response
// being built.
type LogContext struct {
	TraceID   string    // active span's trace ID, from internal/telemetry.TraceID
	SpanID    string    // active span's span ID, from internal/telemetry.SpanID
	Dataset   string    // Dataset name the request targets
	CE        string    // Raw constraint expression
	ClientIP  string    // Client IP address (without port)
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Dataset:   lc.Dataset,
		CE:        lc.CE,
		ClientIP:  lc.ClientIP,
		StartTime: lc.StartTime,
	}
}

// WithDataset returns a copy with the dataset name set
func (lc *LogContext) WithDataset(dataset string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Dataset = dataset
	}
	return clone
}

// WithCE returns a copy with the raw constraint expression set
func (lc *LogContext) WithCE(ce string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.CE = ce
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
