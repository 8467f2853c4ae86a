package reachability

import (
	"github.com/GoSim-25-26J-441/resilience-core/internal/failure"
	"github.com/GoSim-25-26J-441/resilience-core/internal/graph"
)

// Reachable reports whether target can be reached from source over the
// subgraph induced by alive. It is false whenever either endpoint is dead
// or unknown. This is the pairwise form; trial scoring uses Closure.
func Reachable(g *graph.Graph, alive *failure.AliveSet, source, target string) bool {
	s, ok := g.Index(source)
	if !ok {
		return false
	}
	t, ok := g.Index(target)
	if !ok {
		return false
	}
	if !alive.At(s) || !alive.At(t) {
		return false
	}
	c := NewClosure(g)
	c.Compute(alive, s)
	return c.Contains(t)
}

// Closure is the forward-reachable node set of one source over the induced
// subgraph of one trial. It reuses its buffers across Compute calls and is
// not safe for concurrent use.
type Closure struct {
	graph *graph.Graph
	seen  []bool
	queue []int
	size  int
}

// NewClosure allocates a closure buffer for g
func NewClosure(g *graph.Graph) *Closure {
	return &Closure{
		graph: g,
		seen:  make([]bool, g.Len()),
		queue: make([]int, 0, g.Len()),
	}
}

// Compute runs a BFS from source over alive nodes only. A dead source
// yields an empty closure.
func (c *Closure) Compute(alive *failure.AliveSet, source int) {
	for i := range c.seen {
		c.seen[i] = false
	}
	c.size = 0
	c.queue = c.queue[:0]
	if !alive.At(source) {
		return
	}

	c.seen[source] = true
	c.size = 1
	c.queue = append(c.queue, source)
	for head := 0; head < len(c.queue); head++ {
		for _, next := range c.graph.SuccessorIndices(c.queue[head]) {
			if c.seen[next] || !alive.At(next) {
				continue
			}
			c.seen[next] = true
			c.size++
			c.queue = append(c.queue, next)
		}
	}
}

// Contains reports whether node i was reached
func (c *Closure) Contains(i int) bool {
	return c.seen[i]
}

// ContainsAll reports whether every node in targets was reached
func (c *Closure) ContainsAll(targets []int) bool {
	for _, t := range targets {
		if !c.seen[t] {
			return false
		}
	}
	return true
}

// Size returns the number of reached nodes, including the source
func (c *Closure) Size() int {
	return c.size
}
