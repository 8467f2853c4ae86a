// Package failure samples which services survive one Monte-Carlo trial.
//
// Two models are provided and they are not numerically equivalent:
//
//   - without_replacement: exactly K = clamp(ceil(p*N), 1, N) of the N
//     containers are killed per trial (a fixed-size chaos event).
//   - independent: every container fails on its own with probability p, so a
//     service with k replicas is alive with probability 1 - p^k.
//
// A Sampler is immutable and shared between workers. Each worker opens its
// own Stream over its own RandSource.
package failure

import (
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/resilience-core/internal/graph"
	"github.com/GoSim-25-26J-441/resilience-core/internal/resource"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// Model names a failure model
type Model string

const (
	ModelWithoutReplacement Model = "without_replacement"
	ModelIndependent        Model = "independent"
)

// ParseModel parses a model name. The empty string selects the
// without-replacement model.
func ParseModel(s string) (Model, error) {
	switch Model(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModelWithoutReplacement:
		return ModelWithoutReplacement, nil
	case ModelIndependent:
		return ModelIndependent, nil
	}
	return "", models.NewConfigurationError("failure.ParseModel", "unknown failure model %q (must be %s or %s)", s, ModelWithoutReplacement, ModelIndependent)
}

// Sampler draws alive-service sets.
type Sampler interface {
	Model() Model
	// Degenerate reports an empty container population; every trial then
	// keeps all services alive.
	Degenerate() bool
	// Stream opens a trial stream over rng.
	Stream(rng *utils.RandSource) Stream
}

// Stream produces successive trials. It owns scratch buffers and is not
// safe for concurrent use. The set returned by Next is overwritten by the
// following call.
type Stream interface {
	Next() *AliveSet
}

// New constructs the sampler for a model.
func New(model Model, replicas *resource.Assignment, pFail float64) (Sampler, error) {
	if replicas == nil {
		return nil, models.NewMalformedInputError("failure.New", "replica assignment is nil")
	}
	if !(pFail > 0 && pFail <= 1) {
		return nil, models.NewConfigurationError("failure.New", "p_fail must be in (0, 1], got %v", pFail)
	}
	switch model {
	case ModelWithoutReplacement, "":
		return NewWithoutReplacement(replicas, pFail), nil
	case ModelIndependent:
		return NewIndependent(replicas, pFail), nil
	}
	return nil, models.NewConfigurationError("failure.New", "unknown failure model %q", model)
}

// AliveSet records which graph nodes survived a trial.
type AliveSet struct {
	graph *graph.Graph
	alive []bool
	count int
}

// NewAliveSet returns a set over g with every service dead.
func NewAliveSet(g *graph.Graph) *AliveSet {
	return &AliveSet{graph: g, alive: make([]bool, g.Len())}
}

// NewAliveSetOf returns a set over g holding exactly the named services.
// Unknown names are reported as an error.
func NewAliveSetOf(g *graph.Graph, services ...string) (*AliveSet, error) {
	a := NewAliveSet(g)
	for _, s := range services {
		i, ok := g.Index(s)
		if !ok {
			return nil, fmt.Errorf("service %q is not in the graph", s)
		}
		a.Set(i, true)
	}
	return a, nil
}

// Set marks node i alive or dead
func (a *AliveSet) Set(i int, alive bool) {
	if a.alive[i] == alive {
		return
	}
	a.alive[i] = alive
	if alive {
		a.count++
	} else {
		a.count--
	}
}

// Fill marks every node alive or dead
func (a *AliveSet) Fill(alive bool) {
	for i := range a.alive {
		a.alive[i] = alive
	}
	if alive {
		a.count = len(a.alive)
	} else {
		a.count = 0
	}
}

// At reports whether node i is alive
func (a *AliveSet) At(i int) bool {
	return a.alive[i]
}

// Contains reports whether the named service is alive. Unknown services
// are never alive.
func (a *AliveSet) Contains(name string) bool {
	i, ok := a.graph.Index(name)
	return ok && a.alive[i]
}

// Len returns the number of alive services
func (a *AliveSet) Len() int {
	return a.count
}

// Graph returns the graph the set ranges over
func (a *AliveSet) Graph() *graph.Graph {
	return a.graph
}

// Services returns the alive services in node order
func (a *AliveSet) Services() []string {
	out := make([]string, 0, a.count)
	for i, ok := range a.alive {
		if ok {
			out = append(out, a.graph.Name(i))
		}
	}
	return out
}
