package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeExhausted = "exhausted"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

type Metrics struct {
	AllocationsTotal     *prometheus.CounterVec
	AllocationDuration   prometheus.Histogram
	SerializationRetries prometheus.Counter
	AdminOperations      *prometheus.CounterVec
	LedgerCacheLookups   *prometheus.CounterVec
}

// New registers the numbering metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the numbering metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AllocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_numbering_allocations_total",
			Help: "Official number allocation attempts by outcome",
		}, []string{"outcome"}),
		AllocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_numbering_allocation_duration_seconds",
			Help:    "Latency of official number allocation including retries",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SerializationRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "folio_numbering_serialization_retries_total",
			Help: "Transactions retried after a serialization failure",
		}),
		AdminOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_numbering_admin_operations_total",
			Help: "Administrative range and quota operations by outcome",
		}, []string{"operation", "outcome"}),
		LedgerCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_numbering_ledger_cache_lookups_total",
			Help: "Quota ledger cache lookups by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveAllocation(outcome string, seconds float64) {
	m.AllocationsTotal.WithLabelValues(outcome).Inc()
	m.AllocationDuration.Observe(seconds)
}

func (m *Metrics) IncrementRetries() {
	m.SerializationRetries.Inc()
}

func (m *Metrics) IncrementAdminOperation(operation, outcome string) {
	m.AdminOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrementCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.LedgerCacheLookups.WithLabelValues(result).Inc()
}
