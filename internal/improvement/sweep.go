package improvement

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/resilience-core/internal/engine"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/config"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// SweepPoint is the estimate at one failure fraction
type SweepPoint struct {
	PFail  float64        `json:"p_fail"`
	Report *models.Report `json:"report"`
}

// SweepRange returns the fractions from, from+step, ... up to and including
// to, with float drift around the last value absorbed.
func SweepRange(from, to, step float64) ([]float64, error) {
	const op = "improvement.SweepRange"
	if !(from > 0 && to <= 1 && from <= to) {
		return nil, models.NewConfigurationError(op, "range must satisfy 0 < from <= to <= 1, got [%v, %v]", from, to)
	}
	if step <= 0 {
		return nil, models.NewConfigurationError(op, "step must be positive, got %v", step)
	}
	n := int((to-from)/step+1e-9) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out, nil
}

// Sweep estimates the scenario once per failure fraction, running at most
// parallel estimations at a time (0 means one at a time). Every run uses the
// scenario's seed. Points are returned in ascending p_fail order.
func Sweep(ctx context.Context, scenario *config.Scenario, pFails []float64, parallel int) ([]SweepPoint, error) {
	const op = "improvement.Sweep"
	if scenario == nil {
		return nil, models.NewMalformedInputError(op, "scenario is nil")
	}
	if len(pFails) == 0 {
		return nil, models.NewConfigurationError(op, "no failure fractions given")
	}
	if parallel <= 0 {
		parallel = 1
	}

	engines := make([]*engine.Engine, len(pFails))
	for i, p := range pFails {
		if !(p > 0 && p <= 1) {
			return nil, models.NewConfigurationError(op, "p_fail must be in (0, 1], got %v", p)
		}
		sc := *scenario
		sc.Simulation.SetPFail(p)
		eng, err := engine.FromScenario(&sc)
		if err != nil {
			return nil, err
		}
		engines[i] = eng
	}

	log := logger.Component("sweep")
	points := make([]SweepPoint, len(pFails))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, eng := range engines {
		g.Go(func() error {
			report, err := eng.Run(gctx)
			if err != nil {
				return err
			}
			log.Debug("sweep point done", "p_fail", pFails[i], "r_avg", report.RAvg)
			points[i] = SweepPoint{PFail: pFails[i], Report: report}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(points, func(a, b int) bool { return points[a].PFail < points[b].PFail })
	return points, nil
}
