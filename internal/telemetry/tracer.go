package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for response-builder operations. These follow
// OpenTelemetry semantic conventions where applicable.
const (
	AttrDataset        = "dap.dataset"
	AttrCE             = "dap.ce"
	AttrFuncCE         = "dap.func_ce"
	AttrResidual       = "dap.residual"
	AttrKind           = "dap.response_kind"
	AttrProtocol       = "dap.protocol"
	AttrCacheHit       = "cache.hit"
	AttrCacheState     = "cache.state"
	AttrCacheSize      = "cache.size"
	AttrTimeoutSeconds = "dap.timeout_seconds"
	AttrTimeoutFired   = "dap.timeout_fired"
	AttrSize           = "dap.response_size"
)

// Span names for response-builder operations.
// Format: dap.build.<kind> for a Send* call, cache.<operation> for the
// function-result cache's internal steps.
const (
	SpanBuildDAS     = "dap.build.das"
	SpanBuildDDS     = "dap.build.dds"
	SpanBuildDDX     = "dap.build.ddx"
	SpanBuildDataDDS = "dap.build.data-dds"
	SpanBuildDataDDX = "dap.build.data-ddx"

	SpanCacheLookup = "cache.lookup"
	SpanCacheWrite  = "cache.write"
	SpanCacheEvict  = "cache.evict"
)

// Dataset returns an attribute for the dataset name.
func Dataset(name string) attribute.KeyValue {
	return attribute.String(AttrDataset, name)
}

// CE returns an attribute for the raw constraint expression.
func CE(ce string) attribute.KeyValue {
	return attribute.String(AttrCE, ce)
}

// FuncCE returns an attribute for a split-out function sub-CE.
func FuncCE(ce string) attribute.KeyValue {
	return attribute.String(AttrFuncCE, ce)
}

// Residual returns an attribute for a split-out residual CE.
func Residual(ce string) attribute.KeyValue {
	return attribute.String(AttrResidual, ce)
}

// Kind returns an attribute for the response kind (das, dds, ddx, ...).
func Kind(kind string) attribute.KeyValue {
	return attribute.String(AttrKind, kind)
}

// Protocol returns an attribute for the advertised protocol version.
func Protocol(version string) attribute.KeyValue {
	return attribute.String(AttrProtocol, version)
}

// CacheHit returns an attribute for cache hit indicator.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheState returns an attribute for cache state (e.g. hit, miss, stale).
func CacheState(state string) attribute.KeyValue {
	return attribute.String(AttrCacheState, state)
}

// CacheSize returns an attribute for the cache's total tracked size in bytes.
func CacheSize(bytes uint64) attribute.KeyValue {
	return attribute.Int64(AttrCacheSize, int64(bytes))
}

// TimeoutSeconds returns an attribute for the armed timeout, in seconds.
func TimeoutSeconds(seconds int) attribute.KeyValue {
	return attribute.Int(AttrTimeoutSeconds, seconds)
}

// TimeoutFired returns an attribute for whether the timeout fired mid-response.
func TimeoutFired(fired bool) attribute.KeyValue {
	return attribute.Bool(AttrTimeoutFired, fired)
}

// Size returns an attribute for an estimated or actual response size in bytes.
func Size(bytes uint64) attribute.KeyValue {
	return attribute.Int64(AttrSize, int64(bytes))
}

// StartBuildSpan starts a span for one Send* call — the per-response span
// boundary, the same shape as a per-RPC-procedure span in a request-response
// protocol server.
func StartBuildSpan(ctx context.Context, kind, datasetName, ce string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Kind(kind), Dataset(datasetName), CE(ce)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, "dap.build."+kind, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a function-result cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}
