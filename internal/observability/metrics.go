package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mail"

// Provider attempt results
const (
	ResultSuccess = "success"
	ResultEmpty   = "empty"
	ResultError   = "error"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	composeRequestsTotal    *prometheus.CounterVec
	providerAttemptsTotal   *prometheus.CounterVec
	providerAttemptDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),

		composeRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compose_requests_total",
			Help:      "Compose requests by outcome",
		}, []string{"outcome"}),

		providerAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compose_provider_attempts_total",
			Help:      "Compose provider calls by provider, path (sdk or rest) and result",
		}, []string{"provider", "path", "result"}),

		providerAttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compose_provider_duration_seconds",
			Help:      "Duration of one provider call including its retries",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"provider"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.composeRequestsTotal,
		m.providerAttemptsTotal,
		m.providerAttemptDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route pattern, status code, and duration.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCompose records the final outcome of a compose request
// ("success", "invalid", "unconfigured", "failed", "canceled").
func (m *Metrics) RecordCompose(outcome string) {
	if m == nil {
		return
	}
	m.composeRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordProviderAttempt records one provider call on the sdk or rest path.
func (m *Metrics) RecordProviderAttempt(provider, path, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerAttemptsTotal.WithLabelValues(provider, path, result).Inc()
	m.providerAttemptDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
