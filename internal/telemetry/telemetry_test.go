package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "dapserve", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(ctx)
	assert.NoError(t, err)
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	tracer = nil
	enabled = false

	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		SetAttributes(ctx, Dataset("Sample"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", TraceID(ctx))
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", SpanID(ctx))
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("Dataset", func(t *testing.T) {
		attr := Dataset("Sample")
		assert.Equal(t, AttrDataset, string(attr.Key))
		assert.Equal(t, "Sample", attr.Value.AsString())
	})

	t.Run("CE", func(t *testing.T) {
		attr := CE("mean(x,0)")
		assert.Equal(t, AttrCE, string(attr.Key))
		assert.Equal(t, "mean(x,0)", attr.Value.AsString())
	})

	t.Run("FuncCE", func(t *testing.T) {
		attr := FuncCE("mean(x,0)")
		assert.Equal(t, AttrFuncCE, string(attr.Key))
		assert.Equal(t, "mean(x,0)", attr.Value.AsString())
	})

	t.Run("Residual", func(t *testing.T) {
		attr := Residual("region")
		assert.Equal(t, AttrResidual, string(attr.Key))
		assert.Equal(t, "region", attr.Value.AsString())
	})

	t.Run("Kind", func(t *testing.T) {
		attr := Kind("data-dds")
		assert.Equal(t, AttrKind, string(attr.Key))
		assert.Equal(t, "data-dds", attr.Value.AsString())
	})

	t.Run("Protocol", func(t *testing.T) {
		attr := Protocol("3.2")
		assert.Equal(t, AttrProtocol, string(attr.Key))
		assert.Equal(t, "3.2", attr.Value.AsString())
	})

	t.Run("CacheHit", func(t *testing.T) {
		attr := CacheHit(true)
		assert.Equal(t, AttrCacheHit, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("CacheState", func(t *testing.T) {
		attr := CacheState("stale")
		assert.Equal(t, AttrCacheState, string(attr.Key))
		assert.Equal(t, "stale", attr.Value.AsString())
	})

	t.Run("CacheSize", func(t *testing.T) {
		attr := CacheSize(4096)
		assert.Equal(t, AttrCacheSize, string(attr.Key))
		assert.Equal(t, int64(4096), attr.Value.AsInt64())
	})

	t.Run("TimeoutSeconds", func(t *testing.T) {
		attr := TimeoutSeconds(30)
		assert.Equal(t, AttrTimeoutSeconds, string(attr.Key))
		assert.Equal(t, int64(30), attr.Value.AsInt64())
	})

	t.Run("TimeoutFired", func(t *testing.T) {
		attr := TimeoutFired(true)
		assert.Equal(t, AttrTimeoutFired, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("Size", func(t *testing.T) {
		attr := Size(1024)
		assert.Equal(t, AttrSize, string(attr.Key))
		assert.Equal(t, int64(1024), attr.Value.AsInt64())
	})
}

func TestStartBuildSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartBuildSpan(ctx, "data-dds", "Sample", "mean(x,0)")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartBuildSpan(ctx, "dds", "Sample", "", Protocol("3.2"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartCacheSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartCacheSpan(ctx, "lookup")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartCacheSpan(ctx, "write", CacheHit(false))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
