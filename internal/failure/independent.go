package failure

import (
	"github.com/GoSim-25-26J-441/resilience-core/internal/resource"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// Independent fails every container independently with probability pFail.
type Independent struct {
	replicas *resource.Assignment
	pFail    float64
}

// NewIndependent constructs the sampler. pFail is assumed validated.
func NewIndependent(replicas *resource.Assignment, pFail float64) *Independent {
	if replicas.TotalContainers() == 0 {
		logger.Warn("empty container population, every trial keeps all services alive")
	}
	return &Independent{replicas: replicas, pFail: pFail}
}

// Model implements Sampler
func (s *Independent) Model() Model {
	return ModelIndependent
}

// Degenerate implements Sampler
func (s *Independent) Degenerate() bool {
	return s.replicas.TotalContainers() == 0
}

// Stream implements Sampler
func (s *Independent) Stream(rng *utils.RandSource) Stream {
	return &independentStream{
		sampler: s,
		rng:     rng,
		alive:   NewAliveSet(s.replicas.Graph()),
	}
}

type independentStream struct {
	sampler *Independent
	rng     *utils.RandSource
	alive   *AliveSet
}

// Next visits services in node order and their replicas in order. Each
// replica takes one Float64 draw and survives when the draw is >= pFail.
// The first surviving replica decides the service; its remaining replicas
// are not drawn.
func (st *independentStream) Next() *AliveSet {
	if st.sampler.Degenerate() {
		st.alive.Fill(true)
		return st.alive
	}
	reps := st.sampler.replicas
	for i := 0; i < reps.Graph().Len(); i++ {
		up := false
		for k := 0; k < reps.CountAt(i); k++ {
			if st.rng.Float64() >= st.sampler.pFail {
				up = true
				break
			}
		}
		st.alive.Set(i, up)
	}
	return st.alive
}
