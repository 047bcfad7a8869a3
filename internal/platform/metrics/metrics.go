package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide HTTP and outbox metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "folio_outbox_published_total",
			Help: "Outbox messages published to the broker",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "folio_outbox_publish_failures_total",
			Help: "Outbox messages that failed to publish and stay pending",
		}),
	}
}

func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}

func (m *Metrics) IncrementOutboxPublished() {
	m.OutboxPublished.Inc()
}

func (m *Metrics) IncrementOutboxFailures() {
	m.OutboxFailures.Inc()
}
