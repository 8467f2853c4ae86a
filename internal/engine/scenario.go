package engine

import (
	"github.com/GoSim-25-26J-441/resilience-core/internal/failure"
	"github.com/GoSim-25-26J-441/resilience-core/internal/graph"
	"github.com/GoSim-25-26J-441/resilience-core/internal/resource"
	"github.com/GoSim-25-26J-441/resilience-core/internal/workload"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/config"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// FromScenario builds the graph, replica assignment and catalog described
// by a scenario and returns an engine over them. Unset simulation
// parameters take the package defaults; the scenario itself is not
// modified.
func FromScenario(s *config.Scenario) (*Engine, error) {
	if s == nil {
		return nil, models.NewMalformedInputError("engine.FromScenario", "scenario is nil")
	}
	sc := *s
	sc.ApplyDefaults(nil)

	edges := make([]graph.Edge, len(sc.Edges))
	for i, e := range sc.Edges {
		edges[i] = graph.Edge{Caller: e.Parent, Callee: e.Child}
	}
	g, err := graph.New(edges)
	if err != nil {
		return nil, err
	}

	replicas, err := resource.NewAssignment(g, sc.Replication.Enabled, resource.ReplicaTable{
		Default: sc.Replication.Default,
		Counts:  sc.Replication.Services,
	})
	if err != nil {
		return nil, err
	}

	specs := make([]workload.EndpointSpec, len(sc.Endpoints))
	for i, ep := range sc.Endpoints {
		extras := make([]workload.Extra, len(ep.Extras))
		for k, x := range ep.Extras {
			extras[k] = workload.Extra{Service: x.Service, Probability: x.Probability}
		}
		specs[i] = workload.EndpointSpec{
			Name:               ep.Name,
			Targets:            ep.Targets,
			Weight:             ep.Weight,
			Extras:             extras,
			IncludeDescendants: ep.IncludeDescendants,
		}
	}
	catalog, err := workload.NewCatalog(g, specs)
	if err != nil {
		return nil, err
	}

	model, err := failure.ParseModel(sc.Simulation.Model)
	if err != nil {
		return nil, err
	}

	return New(g, replicas, catalog, Params{
		Client:      sc.Client,
		Samples:     sc.Simulation.SamplesValue(),
		PFail:       sc.Simulation.PFailValue(),
		Model:       model,
		Seed:        sc.Simulation.SeedValue(),
		Workers:     sc.Simulation.Workers,
		ChunkSize:   sc.Simulation.ChunkSize,
		Replication: sc.Replication.Enabled,
	})
}
