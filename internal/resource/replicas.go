package resource

import (
	"sort"

	"github.com/GoSim-25-26J-441/resilience-core/internal/graph"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// ReplicaTable is the externally supplied replica configuration.
// A zero Default means one replica per unlisted service.
type ReplicaTable struct {
	Default int
	Counts  map[string]int
}

// Assignment maps every graph service to its replica (container) count.
// It is immutable and safe to share between trial workers.
type Assignment struct {
	graph   *graph.Graph
	counts  []int
	total   int
	enabled bool
}

// NewAssignment builds the replica assignment for g. With replication
// disabled every service runs a single container. Declared counts are
// validated either way.
func NewAssignment(g *graph.Graph, enabled bool, table ReplicaTable) (*Assignment, error) {
	if g == nil {
		return nil, models.NewMalformedInputError("resource.NewAssignment", "graph is nil")
	}
	if table.Default < 0 {
		return nil, models.NewConfigurationError("resource.NewAssignment", "default replica count must be positive, got %d", table.Default)
	}

	names := make([]string, 0, len(table.Counts))
	for name := range table.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if n := table.Counts[name]; n <= 0 {
			return nil, models.NewConfigurationError("resource.NewAssignment", "service %s: replica count must be positive, got %d", name, n)
		}
		if !g.Contains(name) {
			logger.Warn("replica count declared for service outside the dependency graph", "service", name)
		}
	}

	def := table.Default
	if def == 0 {
		def = 1
	}

	a := &Assignment{
		graph:   g,
		counts:  make([]int, g.Len()),
		enabled: enabled,
	}
	for i := 0; i < g.Len(); i++ {
		n := 1
		if enabled {
			n = def
			if c, ok := table.Counts[g.Name(i)]; ok {
				n = c
			}
		}
		a.counts[i] = n
		a.total += n
	}
	return a, nil
}

// Graph returns the graph the assignment was built for
func (a *Assignment) Graph() *graph.Graph {
	return a.graph
}

// Enabled reports whether replication was enabled
func (a *Assignment) Enabled() bool {
	return a.enabled
}

// TotalContainers returns N, the container population size
func (a *Assignment) TotalContainers() int {
	return a.total
}

// Count returns the replica count of a service, 0 if unknown
func (a *Assignment) Count(name string) int {
	i, ok := a.graph.Index(name)
	if !ok {
		return 0
	}
	return a.counts[i]
}

// CountAt returns the replica count of node i
func (a *Assignment) CountAt(i int) int {
	return a.counts[i]
}

// Containers returns the container multiset in node order, each service
// repeated by its replica count.
func (a *Assignment) Containers() []string {
	out := make([]string, 0, a.total)
	for i, n := range a.counts {
		name := a.graph.Name(i)
		for k := 0; k < n; k++ {
			out = append(out, name)
		}
	}
	return out
}

// ContainerOwners is Containers expressed as node numbers.
func (a *Assignment) ContainerOwners() []int {
	out := make([]int, 0, a.total)
	for i, n := range a.counts {
		for k := 0; k < n; k++ {
			out = append(out, i)
		}
	}
	return out
}
