package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// sample finds the series of name carrying every label pair in labels
// (given as "name", "value", ...). No labels matches the first series.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels ...string) *dto.Metric {
	t.Helper()
	metric, err := find(reg, name, labels...)
	if err != nil {
		t.Fatal(err)
	}
	return metric
}

func find(reg *prometheus.Registry, name string, labels ...string) (*dto.Metric, error) {
	mfs, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabels(metric, labels) {
				return metric, nil
			}
		}
		return nil, fmt.Errorf("%s has no series with labels %v", name, labels)
	}
	return nil, fmt.Errorf("%s not exported", name)
}

func hasLabels(metric *dto.Metric, labels []string) bool {
	have := make(map[string]string, len(metric.GetLabel()))
	for _, pair := range metric.GetLabel() {
		have[pair.GetName()] = pair.GetValue()
	}
	for i := 0; i+1 < len(labels); i += 2 {
		if have[labels[i]] != labels[i+1] {
			return false
		}
	}
	return true
}
