package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledByDefault(t *testing.T) {
	reset()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, NewCacheMetrics())
	assert.Nil(t, NewBuilderMetrics())
}

func TestInitRegistryEnablesMetrics(t *testing.T) {
	reset()
	reg := InitRegistry()
	assert.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
	reset()
}

func TestInitRegistryIdempotent(t *testing.T) {
	reset()
	first := InitRegistry()
	second := InitRegistry()
	assert.Same(t, first, second)
	reset()
}

func TestNilMetricsWrappersDoNotPanic(t *testing.T) {
	reset()
	assert.NotPanics(t, func() {
		ObserveWrite(nil, 10, 0)
		ObserveRead(nil, 10, 0, true)
		RecordEviction(nil, "size_limit")
		RecordTotalSize(nil, 0)
		RecordResponse(nil, "dds", 0, true)
		RecordTimeoutFired(nil, "datadds")
	})
}
