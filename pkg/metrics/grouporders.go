package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GroupOrderMetrics records group order writes and the retry loop around them.
type GroupOrderMetrics struct {
	writes    *prometheus.CounterVec
	conflicts prometheus.Counter
	attempts  *prometheus.HistogramVec
}

// NewGroupOrderMetrics registers the aggregation metrics on the provided registerer.
func NewGroupOrderMetrics(reg prometheus.Registerer) *GroupOrderMetrics {
	if reg == nil {
		return &GroupOrderMetrics{}
	}
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "group_order_writes_total",
		Help: "Group order write operations, by operation and outcome.",
	}, []string{"op", "outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "group_order_write_conflicts_total",
		Help: "Optimistic version collisions observed while writing group orders.",
	})
	attempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "group_order_write_attempts",
		Help:    "Attempts needed per group order write.",
		Buckets: []float64{1, 2, 3, 5, 8},
	}, []string{"op"})
	reg.MustRegister(writes, conflicts, attempts)
	return &GroupOrderMetrics{writes: writes, conflicts: conflicts, attempts: attempts}
}

// ObserveWrite records a finished write and how many attempts it took.
func (m *GroupOrderMetrics) ObserveWrite(op, outcome string, attempts int) {
	if m == nil || m.writes == nil {
		return
	}
	m.writes.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
	if attempts > 0 {
		m.attempts.WithLabelValues(normalizeLabel(op)).Observe(float64(attempts))
	}
}

// IncConflict counts one version collision.
func (m *GroupOrderMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}
