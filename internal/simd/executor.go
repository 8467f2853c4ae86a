package simd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/resilience-core/internal/engine"
	"github.com/GoSim-25-26J-441/resilience-core/internal/metrics"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/config"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	defaults *config.Defaults
	notifier *Notifier

	mu     sync.Mutex
	active map[string]*activeRun
	wg     sync.WaitGroup
}

// activeRun is the handle of one started estimation. cleanup compares
// handles so a finished goroutine never drops another start's entry.
type activeRun struct {
	cancel context.CancelFunc
}

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrRunTerminal    = errors.New("run is terminal")
	ErrRunIDMissing   = errors.New("run_id is required")
	ErrRunExists      = errors.New("run already exists")
	ErrReportNotReady = errors.New("report not available")
)

func NewRunExecutor(store *RunStore) *RunExecutor {
	return &RunExecutor{
		store:  store,
		active: make(map[string]*activeRun),
	}
}

// SetDefaults sets daemon-wide simulation defaults applied beneath each
// run's scenario.
func (e *RunExecutor) SetDefaults(d *config.Defaults) {
	e.defaults = d
}

// SetNotifier enables completion callbacks.
func (e *RunExecutor) SetNotifier(n *Notifier) {
	e.notifier = n
}

// BuildEngine parses a run input and builds its engine. Every input error
// matches models.ErrConfiguration or models.ErrMalformedInput.
func (e *RunExecutor) BuildEngine(input *RunInput) (*engine.Engine, error) {
	if input == nil {
		return nil, models.NewMalformedInputError("simd.BuildEngine", "input is required")
	}
	scenario, err := config.ParseScenarioYAMLString(input.ScenarioYAML)
	if err != nil {
		if models.IsInputError(err) {
			return nil, err
		}
		return nil, models.NewMalformedInputError("simd.BuildEngine", "%v", err)
	}

	sim := &scenario.Simulation
	if input.Samples != nil {
		if *input.Samples <= 0 {
			return nil, models.NewConfigurationError("simd.BuildEngine", "samples must be positive, got %d", *input.Samples)
		}
		sim.SetSamples(*input.Samples)
	}
	if input.PFail != nil {
		if p := *input.PFail; !(p > 0 && p <= 1) {
			return nil, models.NewConfigurationError("simd.BuildEngine", "p_fail must be in (0, 1], got %v", p)
		}
		sim.SetPFail(*input.PFail)
	}
	if input.Seed != nil {
		seed := *input.Seed
		sim.Seed = &seed
	}
	if input.Model != "" {
		sim.Model = input.Model
	}
	if input.Workers != 0 {
		sim.Workers = input.Workers
	}
	if input.Replication != nil {
		scenario.Replication.Enabled = *input.Replication
	}
	scenario.ApplyDefaults(e.defaults)

	return engine.FromScenario(scenario)
}

// Start begins executing a run asynchronously.
// Returns the updated run state (RUNNING) or an error. An invalid input
// fails the run immediately and the input error is returned. Concurrent
// calls for one run start at most one estimation; the others get the
// running record back.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status != models.RunStatusPending {
		return startedOrTerminal(rec)
	}

	eng, err := e.BuildEngine(rec.Input)
	if err != nil {
		logger.Warn("run rejected", "run_id", runID, "error", err)
		failed, swapped, setErr := e.store.CompareAndSetStatus(runID,
			models.RunStatusPending, models.RunStatusFailed, err.Error())
		if setErr == nil && swapped {
			e.finish(failed, 0, metrics.OutcomeFailed, "")
		}
		return nil, err
	}

	// Stop takes e.mu too, so a run is either cancelled before the swap or
	// has its handle registered by the time Stop looks for it.
	e.mu.Lock()
	updated, swapped, err := e.store.CompareAndSetStatus(runID,
		models.RunStatusPending, models.RunStatusRunning, "")
	if err != nil || !swapped {
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return startedOrTerminal(updated)
	}

	samples := eng.Params().Samples
	if err := e.store.SetProgress(runID, 0, samples); err != nil {
		logger.Debug("progress reset dropped", "run_id", runID, "error", err)
	}
	updated.Run.TrialsTotal = int64(samples)

	ctx, cancel := context.WithCancel(context.Background())
	run := &activeRun{cancel: cancel}
	e.active[runID] = run
	e.wg.Add(1)
	e.mu.Unlock()

	go e.runEstimation(ctx, runID, run, eng)
	return updated, nil
}

func startedOrTerminal(rec *RunRecord) (*RunRecord, error) {
	if rec.Run.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, rec.Run.ID)
	}
	return rec, nil
}

// Stop requests cancellation for a pending or running run and marks it
// cancelled. Stopping a cancelled run is a no-op.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, found := e.store.Get(runID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status == models.RunStatusCancelled {
		return rec, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.active[runID]
	if ok {
		run.cancel()
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		// never started, so no goroutine will report it
		e.finish(updated, 0, metrics.OutcomeCancelled, "")
	}
	return updated, nil
}

// Wait blocks until every started run has returned.
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

// StopAll cancels every in-flight run, used on shutdown.
func (e *RunExecutor) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil {
			logger.Debug("stop on shutdown", "run_id", id, "error", err)
		}
	}
}

func (e *RunExecutor) cleanup(runID string, run *activeRun) {
	e.mu.Lock()
	if e.active[runID] == run {
		delete(e.active, runID)
	}
	e.mu.Unlock()
	run.cancel()
}

// activeRuns reports how many estimations still hold a handle.
func (e *RunExecutor) activeRuns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *RunExecutor) runEstimation(ctx context.Context, runID string, run *activeRun, eng *engine.Engine) {
	defer e.wg.Done()
	defer e.cleanup(runID, run)

	start := time.Now()
	model := string(eng.Params().Model)
	last := 0
	eng.OnProgress(func(done, total int) {
		metrics.AddTrials(done - last)
		last = done
		if err := e.store.SetProgress(runID, done, total); err != nil {
			logger.Debug("progress update dropped", "run_id", runID, "error", err)
		}
	})

	logger.Info("starting estimation", "run_id", runID, "samples", eng.Params().Samples, "model", model)
	report, err := eng.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("estimation cancelled", "run_id", runID)
			rec, setErr := e.store.SetStatus(runID, models.RunStatusCancelled, "")
			if setErr != nil {
				logger.Warn("failed to set cancelled status", "run_id", runID, "error", setErr)
				return
			}
			e.finish(rec, time.Since(start), metrics.OutcomeCancelled, model)
			return
		}
		logger.Error("estimation failed", "run_id", runID, "error", err)
		if rec, setErr := e.store.SetStatus(runID, models.RunStatusFailed, err.Error()); setErr != nil {
			logger.Error("failed to set failed status", "run_id", runID, "error", setErr)
		} else {
			e.finish(rec, time.Since(start), metrics.OutcomeFailed, model)
		}
		return
	}

	rec, err := e.store.SetReport(runID, report)
	if err != nil {
		// stopped after the last chunk
		logger.Info("report discarded", "run_id", runID, "error", err)
		if rec, ok := e.store.Get(runID); ok {
			e.finish(rec, time.Since(start), metrics.OutcomeCancelled, model)
		}
		return
	}

	probabilities := make(map[string]float64, len(report.Endpoints))
	for _, ep := range report.Endpoints {
		probabilities[ep.Name] = ep.Probability
	}
	metrics.SetEndpointProbabilities(probabilities, report.RAvg)

	logger.Info("run completed", "run_id", runID,
		"r_avg", report.RAvg,
		"r_avg_ci95", report.RAvgCI95,
		"elapsed_ms", report.ElapsedMs)
	e.finish(rec, time.Since(start), metrics.OutcomeCompleted, model)
}

// finish records metrics and sends the completion callback for a run that
// just reached a terminal state.
func (e *RunExecutor) finish(rec *RunRecord, elapsed time.Duration, outcome, model string) {
	metrics.ObserveRun(elapsed, outcome, model)
	if e.notifier != nil && rec.Input != nil && rec.Input.CallbackURL != "" {
		e.notifier.Notify(rec.Input.CallbackURL, rec.Input.CallbackSecret, rec)
	}
}
