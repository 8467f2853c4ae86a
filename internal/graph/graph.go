package graph

import (
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// Edge is a directed caller -> callee dependency recovered from tracing.
type Edge struct {
	Caller string
	Callee string
}

// Graph is an immutable directed service dependency graph. Cycles and self
// loops are allowed; parallel edges are collapsed. Nodes are numbered in
// order of first appearance in the edge list, and that order is what the
// replica model and the samplers iterate in.
type Graph struct {
	names []string
	index map[string]int
	succ  [][]int
	edges int
}

// New builds a graph from an edge list. An empty edge list, or an edge with
// an empty endpoint name, is a MalformedInputError.
func New(edges []Edge) (*Graph, error) {
	if len(edges) == 0 {
		return nil, models.NewMalformedInputError("graph.New", "dependency graph has no edges")
	}

	g := &Graph{
		index: make(map[string]int),
	}
	seen := make(map[[2]int]bool, len(edges))

	for i, e := range edges {
		if e.Caller == "" || e.Callee == "" {
			return nil, models.NewMalformedInputError("graph.New", "edge %d has an empty service name (%q -> %q)", i, e.Caller, e.Callee)
		}
		from := g.add(e.Caller)
		to := g.add(e.Callee)
		key := [2]int{from, to}
		if seen[key] {
			continue
		}
		seen[key] = true
		g.succ[from] = append(g.succ[from], to)
		g.edges++
	}

	return g, nil
}

func (g *Graph) add(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.names)
	g.names = append(g.names, name)
	g.index[name] = i
	g.succ = append(g.succ, nil)
	return i
}

// Contains reports whether the service is a node of the graph
func (g *Graph) Contains(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Index returns the node number of a service
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// Name returns the service name of node i
func (g *Graph) Name(i int) string {
	return g.names[i]
}

// Len returns the number of services
func (g *Graph) Len() int {
	return len(g.names)
}

// EdgeCount returns the number of distinct edges
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Nodes returns the services in node order
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Successors returns the direct callees of a service, or nil if the
// service is unknown.
func (g *Graph) Successors(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(g.succ[i]))
	for k, j := range g.succ[i] {
		out[k] = g.names[j]
	}
	return out
}

// SuccessorIndices returns the callees of node i. The slice is shared and
// must not be modified.
func (g *Graph) SuccessorIndices(i int) []int {
	return g.succ[i]
}

// Descendants returns every service reachable from name in the full graph,
// excluding name itself unless it lies on a cycle. Order is BFS order.
func (g *Graph) Descendants(name string) []string {
	start, ok := g.index[name]
	if !ok {
		return nil
	}
	visited := make([]bool, len(g.names))
	queue := append([]int(nil), g.succ[start]...)
	var out []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		out = append(out, g.names[n])
		for _, m := range g.succ[n] {
			if !visited[m] {
				queue = append(queue, m)
			}
		}
	}
	return out
}
