package metrics

import "time"

// BuilderMetrics records ResponseBuilder (C8) activity: per-response-kind
// duration and outcome, plus timeout firings.
type BuilderMetrics interface {
	// RecordResponse records one completed response.
	RecordResponse(kind string, duration time.Duration, success bool)
	// RecordTimeoutFired records the timeout controller injecting a
	// mid-stream error for the given response kind.
	RecordTimeoutFired(kind string)
}

var newPrometheusBuilderMetrics func() BuilderMetrics

// RegisterBuilderMetricsConstructor is called by pkg/metrics/prometheus
// during init to supply the concrete constructor.
func RegisterBuilderMetricsConstructor(constructor func() BuilderMetrics) {
	newPrometheusBuilderMetrics = constructor
}

// NewBuilderMetrics returns a BuilderMetrics instance, or nil if metrics are
// disabled.
func NewBuilderMetrics() BuilderMetrics {
	if !IsEnabled() || newPrometheusBuilderMetrics == nil {
		return nil
	}
	return newPrometheusBuilderMetrics()
}

// RecordResponse is a nil-safe wrapper for BuilderMetrics.RecordResponse.
func RecordResponse(m BuilderMetrics, kind string, duration time.Duration, success bool) {
	if m != nil {
		m.RecordResponse(kind, duration, success)
	}
}

// RecordTimeoutFired is a nil-safe wrapper for BuilderMetrics.RecordTimeoutFired.
func RecordTimeoutFired(m BuilderMetrics, kind string) {
	if m != nil {
		m.RecordTimeoutFired(kind)
	}
}
