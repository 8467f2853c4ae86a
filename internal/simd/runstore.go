package simd

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// RunInput is the payload of a run: a scenario plus optional overrides of
// its simulation parameters. A nil override keeps the scenario's value; an
// explicit samples or p_fail must be valid.
type RunInput struct {
	ScenarioYAML string   `json:"scenario_yaml"`
	Samples      *int     `json:"samples,omitempty"`
	PFail        *float64 `json:"p_fail,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
	Model        string   `json:"model,omitempty"`
	Workers      int      `json:"workers,omitempty"`
	Replication  *bool    `json:"replication,omitempty"`

	// CallbackURL receives a POST when the run reaches a terminal state.
	// "{run_id}" is replaced with the run ID.
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

type RunRecord struct {
	Run    *models.Run
	Input  *RunInput
	Report *models.Report
}

// snapshot copies the mutable parts of a record so callers never share
// state with the store. Input is immutable after Create.
func (r *RunRecord) snapshot() *RunRecord {
	run := *r.Run
	return &RunRecord{
		Run:    &run,
		Input:  r.Input,
		Report: r.Report.Clone(),
	}
}

type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *RunStore) Create(runID string, input *RunInput) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		Run: &models.Run{
			ID:              runID,
			Status:          models.RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Input: input,
	}
	s.runs[runID] = rec
	return rec.snapshot(), nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

func (s *RunStore) List(limit int) []*RunRecord {
	return s.ListFiltered(limit, 0, "")
}

// ListFiltered returns runs newest first, optionally restricted to one
// status. An empty status matches every run.
func (s *RunStore) ListFiltered(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	matched := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Run.Status != status {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].Run, matched[j].Run
		if a.CreatedAtUnixMs != b.CreatedAtUnixMs {
			return a.CreatedAtUnixMs > b.CreatedAtUnixMs
		}
		return a.ID < b.ID
	})

	if offset >= len(matched) {
		return []*RunRecord{}
	}
	matched = matched[offset:]
	out := make([]*RunRecord, 0, minInt(limit, len(matched)))
	for _, rec := range matched[:minInt(limit, len(matched))] {
		out = append(out, rec.snapshot())
	}
	return out
}

// SetStatus moves a run to status. A terminal run never changes again;
// setting the status it already has is a no-op.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		if rec.Run.Status == status {
			return rec.snapshot(), nil
		}
		return nil, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}

	rec.setStatus(status, errMsg)
	return rec.snapshot(), nil
}

// CompareAndSetStatus moves a run from one status to another only if it is
// currently in from. swapped reports whether the move happened; the
// returned record is the state after the call either way.
func (s *RunStore) CompareAndSetStatus(runID string, from, to models.RunStatus, errMsg string) (rec *RunRecord, swapped bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if r.Run.Status != from || from.Terminal() {
		return r.snapshot(), false, nil
	}
	r.setStatus(to, errMsg)
	return r.snapshot(), true, nil
}

func (r *RunRecord) setStatus(status models.RunStatus, errMsg string) {
	r.Run.Status = status
	if errMsg != "" {
		r.Run.Error = errMsg
	}

	switch status {
	case models.RunStatusRunning:
		if r.Run.StartedAtUnixMs == 0 {
			r.Run.StartedAtUnixMs = nowUnixMs()
		}
	case models.RunStatusCompleted,
		models.RunStatusFailed,
		models.RunStatusCancelled:
		r.Run.EndedAtUnixMs = nowUnixMs()
	}
}

// SetProgress records the number of finished trials
func (s *RunStore) SetProgress(runID string, done, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Run.TrialsDone = int64(done)
	rec.Run.TrialsTotal = int64(total)
	return nil
}

// SetReport attaches the final report and completes the run in one step.
// It fails if the run is no longer running, so a stopped run never gains
// a report.
func (s *RunStore) SetReport(runID string, report *models.Report) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status != models.RunStatusRunning {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}
	rec.Report = report.Clone()
	rec.Run.Status = models.RunStatusCompleted
	rec.Run.EndedAtUnixMs = nowUnixMs()
	rec.Run.TrialsDone = int64(report.Samples)
	rec.Run.TrialsTotal = int64(report.Samples)
	return rec.snapshot(), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
