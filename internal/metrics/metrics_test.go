package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register should tolerate AlreadyRegisteredError, got %v", err)
	}
}

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ObserveRun(150*time.Millisecond, OutcomeCompleted, "independent")
	ObserveRun(-time.Second, "bogus", "independent")

	f := gather(t, reg, "resilience_runs_total")
	if f == nil {
		t.Fatal("resilience_runs_total not exported")
	}
	found := map[string]float64{}
	for _, m := range f.GetMetric() {
		if labelValue(m, "model") == "independent" {
			found[labelValue(m, "outcome")] = m.GetCounter().GetValue()
		}
	}
	if found[OutcomeCompleted] < 1 || found[OutcomeFailed] < 1 {
		t.Fatalf("expected completed and failed observations, got %v", found)
	}

	h := gather(t, reg, "resilience_run_seconds")
	if h == nil || h.GetMetric()[0].GetHistogram().GetSampleCount() < 2 {
		t.Fatalf("expected run histogram samples")
	}
}

func TestAddTrials(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	before := 0.0
	if f := gather(t, reg, "resilience_trials_total"); f != nil {
		before = f.GetMetric()[0].GetCounter().GetValue()
	}
	AddTrials(4096)
	AddTrials(-1)
	after := gather(t, reg, "resilience_trials_total").GetMetric()[0].GetCounter().GetValue()
	if after-before != 4096 {
		t.Fatalf("expected 4096 trials added, got %v", after-before)
	}
}

func TestSetEndpointProbabilities(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	SetEndpointProbabilities(map[string]float64{"stale": 0.1}, 0.1)
	SetEndpointProbabilities(map[string]float64{"home-timeline": 0.8, "compose-post": 0.4}, 0.72)

	f := gather(t, reg, "resilience_endpoint_probability")
	if f == nil {
		t.Fatal("resilience_endpoint_probability not exported")
	}
	got := map[string]float64{}
	for _, m := range f.GetMetric() {
		got[labelValue(m, "endpoint")] = m.GetGauge().GetValue()
	}
	if len(got) != 2 || got["home-timeline"] != 0.8 || got["compose-post"] != 0.4 {
		t.Fatalf("unexpected gauges %v", got)
	}

	idx := gather(t, reg, "resilience_index")
	if idx == nil || idx.GetMetric()[0].GetGauge().GetValue() != 0.72 {
		t.Fatalf("expected resilience_index 0.72")
	}
}
