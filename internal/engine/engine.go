package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/resilience-core/internal/failure"
	"github.com/GoSim-25-26J-441/resilience-core/internal/graph"
	"github.com/GoSim-25-26J-441/resilience-core/internal/resource"
	"github.com/GoSim-25-26J-441/resilience-core/internal/workload"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// DefaultChunkSize is the number of trials drawn from one seeded stream
const DefaultChunkSize = 4096

// ErrAlreadyRun is returned by a second call to Run
var ErrAlreadyRun = errors.New("engine: run already started")

// State is the lifecycle state of an Engine
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinalized:
		return "finalized"
	}
	return "unknown"
}

// Params are the run parameters of one estimation
type Params struct {
	Client  string
	Samples int
	PFail   float64
	Model   failure.Model
	Seed    int64
	// Workers defaults to GOMAXPROCS.
	Workers int
	// ChunkSize defaults to DefaultChunkSize.
	ChunkSize int
	// Replication is reported as given by the replica assignment.
	Replication bool
}

// ProgressFunc receives the number of finished trials after each chunk
type ProgressFunc func(done, total int)

// Engine is the Monte-Carlo resilience estimator. An Engine runs once.
type Engine struct {
	graph    *graph.Graph
	replicas *resource.Assignment
	catalog  *workload.Catalog
	sampler  failure.Sampler
	params   Params
	client   int
	weights  []float64

	state      atomic.Int32
	progressMu sync.Mutex
	progress   ProgressFunc
	done       int
	logger     *slog.Logger
}

// New validates the inputs and builds an engine. Every configuration
// problem is reported here, before any trial is drawn.
func New(g *graph.Graph, replicas *resource.Assignment, catalog *workload.Catalog, p Params) (*Engine, error) {
	const op = "engine.New"
	if g == nil {
		return nil, models.NewMalformedInputError(op, "dependency graph is nil")
	}
	if replicas == nil {
		return nil, models.NewMalformedInputError(op, "replica assignment is nil")
	}
	if catalog == nil {
		return nil, models.NewMalformedInputError(op, "endpoint catalog is nil")
	}
	if replicas.Graph() != g || catalog.Graph() != g {
		return nil, models.NewConfigurationError(op, "replica assignment and catalog must be built on the same graph")
	}
	client, ok := g.Index(p.Client)
	if !ok {
		return nil, models.NewConfigurationError(op, "client service %q is not in the dependency graph", p.Client)
	}
	if p.Samples <= 0 {
		return nil, models.NewConfigurationError(op, "samples must be positive, got %d", p.Samples)
	}
	model, err := failure.ParseModel(string(p.Model))
	if err != nil {
		return nil, err
	}
	p.Model = model
	sampler, err := failure.New(model, replicas, p.PFail)
	if err != nil {
		return nil, err
	}

	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	if p.ChunkSize <= 0 {
		p.ChunkSize = DefaultChunkSize
	}
	p.ChunkSize = min(p.ChunkSize, p.Samples)
	p.Replication = replicas.Enabled()

	return &Engine{
		graph:    g,
		replicas: replicas,
		catalog:  catalog,
		sampler:  sampler,
		params:   p,
		client:   client,
		weights:  catalog.Weights(),
		logger:   logger.Component("engine"),
	}, nil
}

// SetLogger sets the engine's logger
func (e *Engine) SetLogger(l *slog.Logger) {
	e.logger = l
}

// OnProgress registers a callback fired after every finished chunk. Calls
// are serialized and done is non-decreasing.
func (e *Engine) OnProgress(fn ProgressFunc) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.progress = fn
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Params returns the effective run parameters after defaulting
func (e *Engine) Params() Params {
	return e.params
}

// Chunks returns the number of trial chunks a run draws
func (e *Engine) Chunks() int {
	return (e.params.Samples-1)/e.params.ChunkSize + 1
}

// Run draws exactly Samples trials and summarizes them. Cancellation is
// observed between chunks; a cancelled or failed run yields no report.
func (e *Engine) Run(ctx context.Context) (*models.Report, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyRun
	}
	defer e.state.Store(int32(StateFinalized))

	p := e.params
	start := time.Now()
	chunks := e.Chunks()
	e.logger.Info("Starting estimation",
		"client", p.Client,
		"model", p.Model,
		"samples", p.Samples,
		"p_fail", p.PFail,
		"seed", p.Seed,
		"containers", e.replicas.TotalContainers(),
		"workers", p.Workers,
		"chunks", chunks)

	tallies := make([]*Tally, chunks)
	var next atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	workers := min(p.Workers, chunks)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			tr := newTrialRunner(e)
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				c := int(next.Add(1) - 1)
				if c >= chunks {
					return nil
				}
				lo := c * p.ChunkSize
				n := min(p.ChunkSize, p.Samples-lo)
				tallies[c] = tr.runChunk(c, n)
				e.reportProgress(n)
			}
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("Estimation aborted", "error", err, "trials_done", e.trialsDone())
		return nil, err
	}

	total := NewTally(e.catalog.Len())
	for _, t := range tallies {
		total.Merge(t)
	}
	if total.Trials != p.Samples {
		return nil, fmt.Errorf("engine: drew %d trials, want %d", total.Trials, p.Samples)
	}

	report := Summarize(e.catalog.Names(), e.weights, total)
	report.Client = p.Client
	report.Model = string(p.Model)
	report.PFail = p.PFail
	report.Seed = p.Seed
	report.Replication = p.Replication
	report.TotalContainers = e.replicas.TotalContainers()
	report.Degenerate = e.sampler.Degenerate()
	if wr, ok := e.sampler.(*failure.WithoutReplacement); ok {
		report.KilledPerTrial = wr.KillCount()
	}
	report.ElapsedMs = time.Since(start).Milliseconds()

	e.logger.Info("Estimation completed",
		"r_avg", report.RAvg,
		"r_avg_ci95", report.RAvgCI95,
		"elapsed_ms", report.ElapsedMs)
	return report, nil
}

func (e *Engine) reportProgress(trials int) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.done += trials
	if e.progress != nil {
		e.progress(e.done, e.params.Samples)
	}
}

func (e *Engine) trialsDone() int {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	return e.done
}
