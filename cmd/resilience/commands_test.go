package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

const hotelScenario = "../../configs/hotel-reservation.yaml"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeReport(t *testing.T, out string) models.Report {
	t.Helper()
	var r models.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("invalid report json %q: %v", out, err)
	}
	return r
}

func TestEstimatePrintsJSONReport(t *testing.T) {
	out, _, err := execute(t, "estimate", hotelScenario, "--samples", "3000")
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}
	r := decodeReport(t, out)
	if r.Samples != 3000 || r.Client != "frontend" || len(r.Endpoints) != 4 {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.Seed != 16 || r.Model != "without_replacement" {
		t.Fatalf("expected scenario seed and model, got %d %s", r.Seed, r.Model)
	}
	if math.Abs(r.RAvg*1000-math.Round(r.RAvg*1000)) > 1e-9 {
		t.Fatalf("expected 3 decimal places by default, got %v", r.RAvg)
	}
}

func TestEstimateIsReproducible(t *testing.T) {
	args := []string{"estimate", hotelScenario, "--samples", "2000", "--seed", "42", "--precision", "-1", "--workers", "3"}
	first, _, err := execute(t, args...)
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}
	args[len(args)-1] = "1"
	second, _, err := execute(t, args...)
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}

	a, b := decodeReport(t, first), decodeReport(t, second)
	if a.RAvg != b.RAvg {
		t.Fatalf("same seed must give the same R_avg across worker counts: %v vs %v", a.RAvg, b.RAvg)
	}
	for i := range a.Endpoints {
		if a.Endpoints[i].Successes != b.Endpoints[i].Successes {
			t.Fatalf("endpoint %s differs: %d vs %d", a.Endpoints[i].Name, a.Endpoints[i].Successes, b.Endpoints[i].Successes)
		}
	}
	if a.Seed != 42 {
		t.Fatalf("expected seed override, got %d", a.Seed)
	}
}

func TestEstimateOverrides(t *testing.T) {
	out, _, err := execute(t, "estimate", hotelScenario,
		"--samples", "1000", "--p-fail", "0.1", "--model", "independent", "--repl")
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}
	r := decodeReport(t, out)
	if r.PFail != 0.1 || r.Model != "independent" || !r.Replication {
		t.Fatalf("overrides not applied: %+v", r)
	}
	if r.KilledPerTrial != 0 {
		t.Fatalf("independent model has no fixed kill count, got %d", r.KilledPerTrial)
	}
}

func TestEstimateWritesOutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	out, _, err := execute(t, "estimate", hotelScenario, "--samples", "1000", "-o", path)
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	if string(written) != out {
		t.Fatalf("file and stdout reports differ")
	}
}

func TestEstimateTextFormat(t *testing.T) {
	out, _, err := execute(t, "estimate", hotelScenario, "--samples", "1000", "--format", "text")
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}
	for _, want := range []string{"client frontend", "ENDPOINT", "search-hotels", "R_avg"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in text report:\n%s", want, out)
		}
	}
}

func TestWriteTextReportDegenerateWarning(t *testing.T) {
	tests := []struct {
		name       string
		degenerate bool
		want       bool
	}{
		{"containers present", false, false},
		{"no containers", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := &models.Report{
				Client:     "a",
				RAvg:       1,
				Degenerate: tt.degenerate,
				Endpoints:  []models.EndpointEstimate{{Name: "x", Weight: 1, Probability: 1}},
			}
			if err := writeTextReport(&buf, r); err != nil {
				t.Fatalf("writeTextReport error: %v", err)
			}
			got := strings.Contains(buf.String(), "warning: no containers to fail, every service stays available")
			if got != tt.want {
				t.Fatalf("warning present = %v, want %v in %q", got, tt.want, buf.String())
			}
		})
	}
}

func TestEstimateProgress(t *testing.T) {
	_, stderr, err := execute(t, "estimate", hotelScenario, "--samples", "5000", "--chunk-size", "500", "--progress")
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}
	if !strings.Contains(stderr, "progress: 5000/5000 trials (100%)") {
		t.Fatalf("expected final progress line, got:\n%s", stderr)
	}
}

func TestEstimateChainNeverSurvives(t *testing.T) {
	scenario := filepath.Join(t.TempDir(), "chain.yaml")
	if err := os.WriteFile(scenario, []byte(`
client: A
edges:
  - {parent: A, child: B}
  - {parent: B, child: C}
  - {parent: C, child: D}
endpoints:
  - name: chain
    weight: 1
    targets: [B, C, D]
simulation:
  samples: 1000
  p_fail: 0.5
`), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	out, _, err := execute(t, "estimate", scenario)
	if err != nil {
		t.Fatalf("estimate error: %v", err)
	}
	// two of four services die in every trial, so the chain never survives
	if r := decodeReport(t, out); r.RAvg != 0 || r.KilledPerTrial != 2 {
		t.Fatalf("expected R_avg 0 with 2 kills, got %+v", r)
	}
}

func TestEstimateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		sentinel error
	}{
		{"p_fail above one", []string{"estimate", hotelScenario, "--p-fail", "1.5"}, models.ErrConfiguration},
		{"zero samples", []string{"estimate", hotelScenario, "--samples", "0"}, models.ErrConfiguration},
		{"unknown model", []string{"estimate", hotelScenario, "--model", "weibull"}, models.ErrConfiguration},
		{"unknown format", []string{"estimate", hotelScenario, "--format", "xml"}, nil},
		{"missing file", []string{"estimate", "does-not-exist.yaml"}, nil},
		{"no arguments", []string{"estimate"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	out, _, err := execute(t, "validate", "../../configs/social-network.yaml")
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !strings.Contains(out, "ok (client nginx-web-server, 3 endpoints") {
		t.Fatalf("unexpected output %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("client: a\nedges: [{parent: a, child: b}]\nendpoints: [{name: x, weight: 1, targets: [zz]}]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := execute(t, "validate", bad); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	out, _, err := execute(t, "compare", hotelScenario, "--samples", "5000")
	if err != nil {
		t.Fatalf("compare error: %v", err)
	}
	for _, want := range []string{"NO REPL", "search-hotels", "R_avg", "containers: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSweep(t *testing.T) {
	out, _, err := execute(t, "sweep", hotelScenario, "--samples", "2000",
		"--from", "0.1", "--to", "0.3", "--step", "0.1", "--parallel", "2", "--format", "json")
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	var points []struct {
		PFail  float64       `json:"p_fail"`
		Report models.Report `json:"report"`
	}
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("invalid sweep json: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for _, pt := range points {
		if pt.Report.PFail != pt.PFail || pt.Report.Samples != 2000 {
			t.Fatalf("unexpected point %+v", pt)
		}
	}

	if _, _, err := execute(t, "sweep", hotelScenario, "--from", "0.6", "--to", "0.2"); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error for an empty range, got %v", err)
	}
}
