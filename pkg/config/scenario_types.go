package config

const (
	// DefaultSeed is the fixed seed used when a scenario does not set one.
	DefaultSeed int64 = 16
	// DefaultSamples is the trial count used when a scenario does not set one.
	DefaultSamples = 500000
	// DefaultPFail is the kill fraction used when a scenario does not set one.
	DefaultPFail = 0.30
)

// Scenario is the complete input of one resilience estimation
type Scenario struct {
	Client      string           `yaml:"client"`
	Edges       []DependencyEdge `yaml:"edges"`
	Replication Replication      `yaml:"replication"`
	Endpoints   []Endpoint       `yaml:"endpoints"`
	Simulation  Simulation       `yaml:"simulation"`
}

// DependencyEdge is one caller -> callee link, named like a tracing
// dependency link
type DependencyEdge struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
}

// Replication is the replica table
type Replication struct {
	Enabled  bool           `yaml:"enabled"`
	Default  int            `yaml:"default,omitempty"`
	Services map[string]int `yaml:"services,omitempty"`
}

// Endpoint is one entry of the workload mix
type Endpoint struct {
	Name               string   `yaml:"name"`
	Weight             float64  `yaml:"weight"`
	Targets            []string `yaml:"targets"`
	Extras             []Extra  `yaml:"extras,omitempty"`
	IncludeDescendants bool     `yaml:"include_descendants,omitempty"`
}

// Extra is a conditional sub-call of an endpoint
type Extra struct {
	Service     string  `yaml:"service"`
	Probability float64 `yaml:"probability"`
}

// Simulation holds the run parameters. Samples, PFail and Seed are
// pointers so an explicit zero is told apart from an unset field.
type Simulation struct {
	Samples   *int     `yaml:"samples,omitempty"`
	PFail     *float64 `yaml:"p_fail,omitempty"`
	Model     string   `yaml:"model"` // without_replacement, independent
	Seed      *int64   `yaml:"seed,omitempty"`
	Workers   int      `yaml:"workers,omitempty"`
	ChunkSize int      `yaml:"chunk_size,omitempty"`
}

// SetSamples sets an explicit trial count
func (s *Simulation) SetSamples(n int) { s.Samples = &n }

// SetPFail sets an explicit kill fraction
func (s *Simulation) SetPFail(p float64) { s.PFail = &p }

// ApplyDefaults fills unset simulation parameters from d, then from the
// package defaults. It never overrides a value the scenario sets.
func (s *Scenario) ApplyDefaults(d *Defaults) {
	sim := &s.Simulation
	if d != nil {
		if sim.Samples == nil && d.Samples != nil {
			sim.SetSamples(*d.Samples)
		}
		if sim.PFail == nil && d.PFail != nil {
			sim.SetPFail(*d.PFail)
		}
		if sim.Model == "" {
			sim.Model = d.Model
		}
		if sim.Seed == nil && d.Seed != nil {
			seed := *d.Seed
			sim.Seed = &seed
		}
		if sim.Workers == 0 {
			sim.Workers = d.Workers
		}
	}
	if sim.Samples == nil {
		sim.SetSamples(DefaultSamples)
	}
	if sim.PFail == nil {
		sim.SetPFail(DefaultPFail)
	}
	if sim.Model == "" {
		sim.Model = "without_replacement"
	}
	if sim.Seed == nil {
		seed := DefaultSeed
		sim.Seed = &seed
	}
}

// SamplesValue returns the configured trial count or DefaultSamples
func (s *Simulation) SamplesValue() int {
	if s.Samples == nil {
		return DefaultSamples
	}
	return *s.Samples
}

// PFailValue returns the configured kill fraction or DefaultPFail
func (s *Simulation) PFailValue() float64 {
	if s.PFail == nil {
		return DefaultPFail
	}
	return *s.PFail
}

// SeedValue returns the configured seed or DefaultSeed
func (s *Simulation) SeedValue() int64 {
	if s.Seed == nil {
		return DefaultSeed
	}
	return *s.Seed
}
