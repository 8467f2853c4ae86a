// Package workload holds the endpoint catalog: the weighted workload mix of
// client-facing endpoints and the services each one needs per request.
//
// Endpoints are plain data. An endpoint has a fixed target set and an
// optional list of extras, conditional sub-calls that join the target set
// of a trial with their own probability (a compose request that only
// sometimes carries media, for example).
package workload

import (
	"math"

	"github.com/GoSim-25-26J-441/resilience-core/internal/graph"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// Extra is a conditional sub-call of an endpoint.
type Extra struct {
	Service     string
	Probability float64
}

// EndpointSpec is the external definition of one endpoint.
type EndpointSpec struct {
	Name    string
	Targets []string
	Weight  float64
	Extras  []Extra
	// IncludeDescendants extends the fixed targets with every service they
	// can reach in the full dependency graph.
	IncludeDescendants bool
}

// Endpoint is a validated endpoint bound to a graph.
type Endpoint struct {
	Name    string
	Weight  float64
	targets []int
	extras  []boundExtra
}

type boundExtra struct {
	node int
	p    float64
}

// Targets returns the number of fixed targets
func (e *Endpoint) Targets() int {
	return len(e.targets)
}

// Extras returns the number of extras
func (e *Endpoint) Extras() int {
	return len(e.extras)
}

// Catalog is an immutable, ordered endpoint collection.
type Catalog struct {
	graph     *graph.Graph
	endpoints []Endpoint
}

// NewCatalog validates specs against g. Every endpoint must end up with at
// least one fixed target; an endpoint that could resolve to nothing would
// otherwise score as trivially available.
func NewCatalog(g *graph.Graph, specs []EndpointSpec) (*Catalog, error) {
	const op = "workload.NewCatalog"
	if g == nil {
		return nil, models.NewMalformedInputError(op, "graph is nil")
	}
	if len(specs) == 0 {
		return nil, models.NewConfigurationError(op, "endpoint catalog is empty")
	}

	c := &Catalog{graph: g, endpoints: make([]Endpoint, 0, len(specs))}
	names := make(map[string]bool, len(specs))
	total := 0.0

	for _, spec := range specs {
		if spec.Name == "" {
			return nil, models.NewConfigurationError(op, "endpoint name cannot be empty")
		}
		if names[spec.Name] {
			return nil, models.NewConfigurationError(op, "duplicate endpoint name: %s", spec.Name)
		}
		names[spec.Name] = true

		if spec.Weight < 0 || math.IsNaN(spec.Weight) || math.IsInf(spec.Weight, 0) {
			return nil, models.NewConfigurationError(op, "endpoint %s: weight must be a non-negative number, got %v", spec.Name, spec.Weight)
		}
		total += spec.Weight

		ep := Endpoint{Name: spec.Name, Weight: spec.Weight}
		seen := make(map[int]bool)
		add := func(name string) error {
			i, ok := g.Index(name)
			if !ok {
				return models.NewConfigurationError(op, "endpoint %s: target service %s is not in the dependency graph", spec.Name, name)
			}
			if !seen[i] {
				seen[i] = true
				ep.targets = append(ep.targets, i)
			}
			return nil
		}
		for _, target := range spec.Targets {
			if err := add(target); err != nil {
				return nil, err
			}
		}
		if spec.IncludeDescendants {
			for _, target := range spec.Targets {
				for _, d := range g.Descendants(target) {
					if err := add(d); err != nil {
						return nil, err
					}
				}
			}
		}
		if len(ep.targets) == 0 {
			return nil, models.NewConfigurationError(op, "endpoint %s: required target set is empty", spec.Name)
		}

		for _, x := range spec.Extras {
			i, ok := g.Index(x.Service)
			if !ok {
				return nil, models.NewConfigurationError(op, "endpoint %s: extra service %s is not in the dependency graph", spec.Name, x.Service)
			}
			if !(x.Probability >= 0 && x.Probability <= 1) {
				return nil, models.NewConfigurationError(op, "endpoint %s: extra %s probability must be in [0, 1], got %v", spec.Name, x.Service, x.Probability)
			}
			ep.extras = append(ep.extras, boundExtra{node: i, p: x.Probability})
		}

		c.endpoints = append(c.endpoints, ep)
	}

	if math.Abs(total-1) > 1e-9 {
		logger.Warn("endpoint weights do not sum to 1", "total_weight", total)
	}
	return c, nil
}

// Graph returns the graph the catalog is bound to
func (c *Catalog) Graph() *graph.Graph {
	return c.graph
}

// Len returns the number of endpoints
func (c *Catalog) Len() int {
	return len(c.endpoints)
}

// Endpoint returns endpoint i
func (c *Catalog) Endpoint(i int) *Endpoint {
	return &c.endpoints[i]
}

// Names returns endpoint names in catalog order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.endpoints))
	for i := range c.endpoints {
		out[i] = c.endpoints[i].Name
	}
	return out
}

// Weights returns endpoint weights in catalog order
func (c *Catalog) Weights() []float64 {
	out := make([]float64, len(c.endpoints))
	for i := range c.endpoints {
		out[i] = c.endpoints[i].Weight
	}
	return out
}

// TotalWeight returns the sum of all endpoint weights
func (c *Catalog) TotalWeight() float64 {
	sum := 0.0
	for i := range c.endpoints {
		sum += c.endpoints[i].Weight
	}
	return sum
}

// Resolve appends the required targets of endpoint i for one trial to dst
// and returns it: the fixed targets, then every extra whose draw falls
// below its probability. Each extra consumes exactly one Float64, in
// declared order, whether or not it is already a fixed target.
func (c *Catalog) Resolve(i int, rng *utils.RandSource, dst []int) []int {
	ep := &c.endpoints[i]
	dst = append(dst, ep.targets...)
	for _, x := range ep.extras {
		if rng.Float64() < x.p {
			dst = append(dst, x.node)
		}
	}
	return dst
}

// ResolveNames is Resolve with service names, for diagnostics and tests.
func (c *Catalog) ResolveNames(i int, rng *utils.RandSource) []string {
	nodes := c.Resolve(i, rng, nil)
	out := make([]string, len(nodes))
	for k, n := range nodes {
		out[k] = c.graph.Name(n)
	}
	return out
}
