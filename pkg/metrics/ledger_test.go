package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLedgerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.IncCashEvent("cash_collected")
	m.IncCashEvent("cash_collected")
	m.IncDecision("settlement", "approved")
	m.IncAutoBlock()
	m.IncDrift(true)

	counters := map[string][]string{
		"ledger_cash_events_total":        {"type", "cash_collected"},
		"ledger_decisions_total":          {"workflow", "settlement", "outcome", "approved"},
		"ledger_balance_drift_total":      {"repaired", "true"},
		"ledger_vendor_auto_blocks_total": nil,
	}
	want := map[string]float64{"ledger_cash_events_total": 2}
	for name, labels := range counters {
		expected := 1.0
		if v, ok := want[name]; ok {
			expected = v
		}
		if got := sample(t, reg, name, labels...).GetCounter().GetValue(); got != expected {
			t.Fatalf("%s: expected %v got %v", name, expected, got)
		}
	}
	if _, err := find(reg, "ledger_balance_drift_total", "repaired", "false"); err == nil {
		t.Fatal("expected no unrepaired drift series")
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncCashEvent("credit")
	m.IncDecision("withdrawal", "rejected")
	m.IncAutoBlock()
	m.IncDrift(false)

	unregistered := NewLedgerMetrics(nil)
	unregistered.IncAutoBlock()
}
