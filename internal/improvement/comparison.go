package improvement

import (
	"context"
	"math"

	"github.com/GoSim-25-26J-441/resilience-core/internal/engine"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/config"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// EndpointComparison compares one endpoint's availability between two runs
type EndpointComparison struct {
	Name        string  `json:"name"`
	Baseline    float64 `json:"baseline"`
	Candidate   float64 `json:"candidate"`
	Diff        float64 `json:"diff"` // candidate - baseline
	CI95        float64 `json:"ci95"` // half-width of the difference
	Significant bool    `json:"significant"`
}

// Comparison compares two reports over the same endpoint catalog
type Comparison struct {
	Baseline    *models.Report       `json:"baseline"`
	Candidate   *models.Report       `json:"candidate"`
	RAvgDiff    float64              `json:"r_avg_diff"`
	RAvgCI95    float64              `json:"r_avg_ci95"`
	Significant bool                 `json:"significant"`
	Improvement bool                 `json:"improvement"`
	Endpoints   []EndpointComparison `json:"endpoints"`
}

// combinedCI95 is the 95% half-width of the difference of two independent
// estimates.
func combinedCI95(a, b float64) float64 {
	return math.Sqrt(a*a + b*b)
}

// CompareReports compares candidate against baseline. A difference is
// significant when it exceeds the combined 95% interval. Both reports must
// list the same endpoints in the same order.
func CompareReports(baseline, candidate *models.Report) (*Comparison, error) {
	const op = "improvement.CompareReports"
	if baseline == nil || candidate == nil {
		return nil, models.NewMalformedInputError(op, "both reports are required")
	}
	if len(baseline.Endpoints) != len(candidate.Endpoints) {
		return nil, models.NewConfigurationError(op, "reports have %d and %d endpoints",
			len(baseline.Endpoints), len(candidate.Endpoints))
	}

	c := &Comparison{
		Baseline:  baseline,
		Candidate: candidate,
		RAvgDiff:  candidate.RAvg - baseline.RAvg,
		RAvgCI95:  combinedCI95(baseline.RAvgCI95, candidate.RAvgCI95),
		Endpoints: make([]EndpointComparison, len(baseline.Endpoints)),
	}
	c.Significant = math.Abs(c.RAvgDiff) > c.RAvgCI95
	c.Improvement = c.Significant && c.RAvgDiff > 0

	for i, b := range baseline.Endpoints {
		cand := candidate.Endpoints[i]
		if cand.Name != b.Name {
			return nil, models.NewConfigurationError(op, "endpoint %d is %s in the baseline but %s in the candidate", i, b.Name, cand.Name)
		}
		ec := EndpointComparison{
			Name:      b.Name,
			Baseline:  b.Probability,
			Candidate: cand.Probability,
			Diff:      cand.Probability - b.Probability,
			CI95:      combinedCI95(b.CI95, cand.CI95),
		}
		ec.Significant = math.Abs(ec.Diff) > ec.CI95
		c.Endpoints[i] = ec
	}
	return c, nil
}

// CompareReplication estimates a scenario without and then with its replica
// table, using the same seed for both, and compares the two reports.
func CompareReplication(ctx context.Context, scenario *config.Scenario) (*Comparison, error) {
	if scenario == nil {
		return nil, models.NewMalformedInputError("improvement.CompareReplication", "scenario is nil")
	}

	reports := make([]*models.Report, 2)
	for i, enabled := range []bool{false, true} {
		sc := *scenario
		sc.Replication.Enabled = enabled
		eng, err := engine.FromScenario(&sc)
		if err != nil {
			return nil, err
		}
		if reports[i], err = eng.Run(ctx); err != nil {
			return nil, err
		}
	}
	return CompareReports(reports[0], reports[1])
}
