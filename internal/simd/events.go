package simd

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// Run event types
const (
	EventStatusChange = "status_change"
	EventProgress     = "progress"
	EventComplete     = "complete"
)

const defaultWatchInterval = 500 * time.Millisecond

// RunEvent is one observation of a run's lifecycle.
type RunEvent struct {
	Type        string           `json:"type"`
	RunID       string           `json:"run_id"`
	AtUnixMs    int64            `json:"at_unix_ms"`
	Status      models.RunStatus `json:"status"`
	TrialsDone  int64            `json:"trials_done"`
	TrialsTotal int64            `json:"trials_total"`
	Run         *models.Run      `json:"run,omitempty"`
}

func newRunEvent(eventType string, rec *RunRecord) RunEvent {
	ev := RunEvent{
		Type:        eventType,
		RunID:       rec.Run.ID,
		AtUnixMs:    nowUnixMs(),
		Status:      rec.Run.Status,
		TrialsDone:  rec.Run.TrialsDone,
		TrialsTotal: rec.Run.TrialsTotal,
	}
	if eventType == EventComplete {
		ev.Run = rec.Run
	}
	return ev
}

// Watch polls a run every interval and emits its events: the current
// status first, then progress and status changes, and a final complete
// event once the run is terminal. It returns nil after the complete event,
// ctx.Err() when ctx ends first, or the first error from emit.
func (s *RunStore) Watch(ctx context.Context, runID string, interval time.Duration, emit func(RunEvent) error) error {
	rec, ok := s.Get(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if interval <= 0 {
		interval = defaultWatchInterval
	}

	status, done := rec.Run.Status, rec.Run.TrialsDone
	if err := emit(newRunEvent(EventStatusChange, rec)); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if rec.Run.Status.Terminal() {
			return emit(newRunEvent(EventComplete, rec))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		rec, ok = s.Get(runID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		if rec.Run.TrialsDone != done {
			if err := emit(newRunEvent(EventProgress, rec)); err != nil {
				return err
			}
			done = rec.Run.TrialsDone
		}
		if rec.Run.Status != status {
			if err := emit(newRunEvent(EventStatusChange, rec)); err != nil {
				return err
			}
			status = rec.Run.Status
		}
	}
}
