package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dapserve/pkg/metrics"
)

func init() {
	metrics.RegisterBuilderMetricsConstructor(newBuilderMetrics)
}

// builderMetrics is the Prometheus implementation of metrics.BuilderMetrics
// for the ResponseBuilder.
type builderMetrics struct {
	responses     *prometheus.CounterVec
	responseTime  *prometheus.HistogramVec
	timeoutsFired *prometheus.CounterVec
}

func newBuilderMetrics() metrics.BuilderMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &builderMetrics{
		responses: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dapserve_responses_total",
			Help: "Total number of responses built, by response kind and outcome.",
		}, []string{"kind", "outcome"}), // outcome: "success", "error"
		responseTime: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dapserve_response_duration_milliseconds",
			Help:    "Time to build and stream a response, by response kind.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
		}, []string{"kind"}),
		timeoutsFired: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dapserve_timeouts_fired_total",
			Help: "Total number of responses that hit their wall-clock deadline mid-emission.",
		}, []string{"kind"}),
	}
}

func (m *builderMetrics) RecordResponse(kind string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.responses.WithLabelValues(kind, outcome).Inc()
	m.responseTime.WithLabelValues(kind).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *builderMetrics) RecordTimeoutFired(kind string) {
	if m == nil {
		return
	}
	m.timeoutsFired.WithLabelValues(kind).Inc()
}
