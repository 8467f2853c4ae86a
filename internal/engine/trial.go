package engine

import (
	"github.com/GoSim-25-26J-441/resilience-core/internal/reachability"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// Tally accumulates the outcome of a run of trials
type Tally struct {
	Trials    int
	Successes []int64
	// sum and sum of squares of the per-trial weighted score sum_i w_i*x_i
	ScoreSum   float64
	ScoreSumSq float64
}

// NewTally returns an empty tally for a catalog of the given size
func NewTally(endpoints int) *Tally {
	return &Tally{Successes: make([]int64, endpoints)}
}

// Merge adds o into t
func (t *Tally) Merge(o *Tally) {
	t.Trials += o.Trials
	for i, s := range o.Successes {
		t.Successes[i] += s
	}
	t.ScoreSum += o.ScoreSum
	t.ScoreSumSq += o.ScoreSumSq
}

// trialRunner holds the per-worker scratch state
type trialRunner struct {
	e       *Engine
	closure *reachability.Closure
	targets []int
}

func newTrialRunner(e *Engine) *trialRunner {
	return &trialRunner{
		e:       e,
		closure: reachability.NewClosure(e.graph),
	}
}

// runChunk draws n trials from the stream seeded for chunk c. Draw order
// within a trial: failure sampler, then every endpoint in catalog order
// with its extras in declared order.
func (tr *trialRunner) runChunk(c, n int) *Tally {
	e := tr.e
	rng := utils.NewRandSource(utils.DeriveSeed(e.params.Seed, uint64(c)))
	stream := e.sampler.Stream(rng)
	t := NewTally(e.catalog.Len())
	t.Trials = n

	for trial := 0; trial < n; trial++ {
		alive := stream.Next()
		tr.closure.Compute(alive, e.client)

		score := 0.0
		for i := range t.Successes {
			tr.targets = e.catalog.Resolve(i, rng, tr.targets[:0])
			if tr.closure.ContainsAll(tr.targets) {
				t.Successes[i]++
				score += e.weights[i]
			}
		}
		t.ScoreSum += score
		t.ScoreSumSq += score * score
	}
	return t
}
