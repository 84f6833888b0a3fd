package infrastructure

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pericarp/es/pkg/application"
)

// PrometheusMetricsCollector implements application.MetricsCollector over
// Prometheus client_golang collectors, so a production fx wiring can expose
// command/query latency and error rates on a /metrics endpoint instead of
// the dependency-free in-memory collector application.DefaultsModule
// provides.
type PrometheusMetricsCollector struct {
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

// NewPrometheusMetricsCollector registers its collectors against reg.
// Passing prometheus.NewRegistry() keeps metrics isolated per test; passing
// prometheus.DefaultRegisterer wires into the process-wide /metrics
// handler.
func NewPrometheusMetricsCollector(reg prometheus.Registerer) (*PrometheusMetricsCollector, error) {
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pericarp",
		Name:      "request_duration_seconds",
		Help:      "Duration of command/query handler execution.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"request_type"})

	requestErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pericarp",
		Name:      "request_errors_total",
		Help:      "Count of command/query handler executions that returned an error.",
	}, []string{"request_type"})

	if err := reg.Register(requestDuration); err != nil {
		return nil, err
	}
	if err := reg.Register(requestErrors); err != nil {
		return nil, err
	}

	return &PrometheusMetricsCollector{
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
	}, nil
}

// RecordRequestDuration observes duration against the request_type label.
func (c *PrometheusMetricsCollector) RecordRequestDuration(requestType string, duration time.Duration) {
	c.requestDuration.WithLabelValues(requestType).Observe(duration.Seconds())
}

// IncrementRequestErrors increments the error counter for requestType.
func (c *PrometheusMetricsCollector) IncrementRequestErrors(requestType string) {
	c.requestErrors.WithLabelValues(requestType).Inc()
}

var _ application.MetricsCollector = (*PrometheusMetricsCollector)(nil)
