package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordOnPrivateRegistry(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveAllocation(OutcomeSuccess, 0.002)
	m.ObserveAllocation(OutcomeSuccess, 0.003)
	m.ObserveAllocation(OutcomeExhausted, 0.001)
	m.IncrementRetries()
	m.IncrementAdminOperation("set_quota", OutcomeRejected)
	m.IncrementCacheLookup(true)
	m.IncrementCacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AllocationsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AllocationsTotal.WithLabelValues(OutcomeExhausted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SerializationRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdminOperations.WithLabelValues("set_quota", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCacheLookups.WithLabelValues("hit")))
}
