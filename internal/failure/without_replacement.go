package failure

import (
	"math"

	"github.com/GoSim-25-26J-441/resilience-core/internal/resource"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// KillCount returns the number of containers killed per trial:
// clamp(ceil(p*N), 1, N), or 0 for an empty population.
func KillCount(total int, pFail float64) int {
	if total <= 0 {
		return 0
	}
	return utils.Clamp(int(math.Ceil(pFail*float64(total))), 1, total)
}

// WithoutReplacement kills exactly K containers per trial, chosen uniformly
// without replacement from the container multiset.
type WithoutReplacement struct {
	replicas *resource.Assignment
	owners   []int
	kill     int
}

// NewWithoutReplacement constructs the sampler. pFail is assumed validated.
func NewWithoutReplacement(replicas *resource.Assignment, pFail float64) *WithoutReplacement {
	total := replicas.TotalContainers()
	if total == 0 {
		logger.Warn("empty container population, every trial keeps all services alive")
	}
	return &WithoutReplacement{
		replicas: replicas,
		owners:   replicas.ContainerOwners(),
		kill:     KillCount(total, pFail),
	}
}

// Model implements Sampler
func (s *WithoutReplacement) Model() Model {
	return ModelWithoutReplacement
}

// Degenerate implements Sampler
func (s *WithoutReplacement) Degenerate() bool {
	return len(s.owners) == 0
}

// KillCount returns K
func (s *WithoutReplacement) KillCount() int {
	return s.kill
}

// Stream implements Sampler
func (s *WithoutReplacement) Stream(rng *utils.RandSource) Stream {
	g := s.replicas.Graph()
	perm := make([]int, len(s.owners))
	copy(perm, s.owners)
	return &withoutReplacementStream{
		sampler: s,
		rng:     rng,
		perm:    perm,
		killed:  make([]int, g.Len()),
		alive:   NewAliveSet(g),
	}
}

type withoutReplacementStream struct {
	sampler *WithoutReplacement
	rng     *utils.RandSource
	perm    []int // container owners, permuted in place across trials
	killed  []int // per service, this trial
	alive   *AliveSet
}

// Next draws K victims with a partial Fisher-Yates shuffle: K Intn calls.
// The selection is uniform whatever order perm was left in by the
// previous trial.
func (st *withoutReplacementStream) Next() *AliveSet {
	if st.sampler.Degenerate() {
		st.alive.Fill(true)
		return st.alive
	}
	for i := range st.killed {
		st.killed[i] = 0
	}
	n := len(st.perm)
	for i := 0; i < st.sampler.kill; i++ {
		j := i + st.rng.Intn(n-i)
		st.perm[i], st.perm[j] = st.perm[j], st.perm[i]
		st.killed[st.perm[i]]++
	}
	for i := range st.killed {
		st.alive.Set(i, st.killed[i] < st.sampler.replicas.CountAt(i))
	}
	return st.alive
}
