package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics records pricing quote traffic.
type QuoteMetrics struct {
	quotes   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewQuoteMetrics registers the quote metrics on the provided registerer.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		return &QuoteMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_quotes_total",
		Help: "Pricing quotes served, by kind and outcome.",
	}, []string{"kind", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_quote_duration_seconds",
		Help:    "Time spent producing a pricing quote.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(quotes, duration)
	return &QuoteMetrics{quotes: quotes, duration: duration}
}

// Observe records one quote of kind with the given outcome and latency.
func (m *QuoteMetrics) Observe(kind, outcome string, elapsed time.Duration) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(elapsed.Seconds())
}
