package engine

import (
	"math"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// Summarize turns raw counts into a report. Each endpoint probability is
// successes/S with a binomial standard error; R_avg is the weighted sum of
// the endpoint probabilities and its error comes from the variance of the
// per-trial weighted score. Only the estimate fields are filled.
func Summarize(names []string, weights []float64, t *Tally) *models.Report {
	report := &models.Report{
		Samples:   t.Trials,
		Endpoints: make([]models.EndpointEstimate, len(names)),
	}
	if t.Trials <= 0 {
		for i, name := range names {
			report.Endpoints[i] = models.EndpointEstimate{Name: name, Weight: weights[i]}
		}
		return report
	}

	s := float64(t.Trials)
	for i, name := range names {
		p := float64(t.Successes[i]) / s
		se := utils.BinomialStdErr(p, t.Trials)
		report.Endpoints[i] = models.EndpointEstimate{
			Name:        name,
			Weight:      weights[i],
			Successes:   t.Successes[i],
			Probability: p,
			StdErr:      se,
			CI95:        utils.Z95 * se,
		}
		report.RAvg += p * weights[i]
	}

	mean := t.ScoreSum / s
	variance := t.ScoreSumSq/s - mean*mean
	if variance > 0 {
		report.RAvgStdErr = math.Sqrt(variance / s)
	}
	report.RAvgCI95 = utils.Z95 * report.RAvgStdErr
	return report
}
