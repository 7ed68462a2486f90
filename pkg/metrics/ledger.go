package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts ledger writes and decisions.
type LedgerMetrics struct {
	cashEvents *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	autoBlocks prometheus.Counter
	drift      *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on reg. A nil registerer yields no-op metrics.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	cashEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_cash_events_total",
		Help: "Cash events recorded, by type.",
	}, []string{"type"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_decisions_total",
		Help: "Settlement and withdrawal decisions, by workflow and outcome.",
	}, []string{"workflow", "outcome"})
	autoBlocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_vendor_auto_blocks_total",
		Help: "Vendors blocked automatically for exceeding their cash limit.",
	})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_balance_drift_total",
		Help: "Vendors whose cached balance disagreed with history during reconciliation.",
	}, []string{"repaired"})
	reg.MustRegister(cashEvents, decisions, autoBlocks, drift)
	return &LedgerMetrics{
		cashEvents: cashEvents,
		decisions:  decisions,
		autoBlocks: autoBlocks,
		drift:      drift,
	}
}

func (m *LedgerMetrics) IncCashEvent(eventType string) {
	if m == nil || m.cashEvents == nil {
		return
	}
	m.cashEvents.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *LedgerMetrics) IncDecision(workflow, outcome string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(workflow), normalizeLabel(outcome)).Inc()
}

func (m *LedgerMetrics) IncAutoBlock() {
	if m == nil || m.autoBlocks == nil {
		return
	}
	m.autoBlocks.Inc()
}

func (m *LedgerMetrics) IncDrift(repaired bool) {
	if m == nil || m.drift == nil {
		return
	}
	label := "false"
	if repaired {
		label = "true"
	}
	m.drift.WithLabelValues(label).Inc()
}
