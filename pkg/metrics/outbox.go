package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the relay from outbox_events to Pub/Sub.
type OutboxMetrics struct {
	relayed       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	batchFailures prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_relay_events_total",
			Help: "Outbox rows handled by the relay, by event type and outcome (published, retried, parked).",
		}, []string{"event_type", "outcome"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_relay_batch_duration_seconds",
			Help:    "Wall time of relay batches that claimed at least one row.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}),
		batchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_relay_batch_failures_total",
			Help: "Relay batches rolled back by a bookkeeping error.",
		}),
	}
	reg.MustRegister(m.relayed, m.batchDuration, m.batchFailures)
	return m
}

func (m *OutboxMetrics) IncRelayed(eventType, outcome string) {
	if m == nil || m.relayed == nil {
		return
	}
	m.relayed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveBatch records a finished batch. Empty batches are not observed so
// idle polling does not flatten the histogram.
func (m *OutboxMetrics) ObserveBatch(rows int, took time.Duration, err error) {
	if m == nil || m.batchDuration == nil {
		return
	}
	if err != nil {
		m.batchFailures.Inc()
		return
	}
	if rows > 0 {
		m.batchDuration.Observe(took.Seconds())
	}
}
