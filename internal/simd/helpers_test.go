package simd

import (
	"fmt"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

const smallScenario = `
client: frontend
edges:
  - {parent: frontend, child: search}
  - {parent: search, child: geo}
  - {parent: frontend, child: profile}
replication:
  enabled: false
endpoints:
  - name: search
    weight: 0.75
    targets: [search, geo]
  - name: profile
    weight: 0.25
    targets: [profile]
simulation:
  samples: 2000
  p_fail: 0.3
  model: without_replacement
  seed: 16
`

// slowScenario asks for enough trials that a test can always stop it
// before it finishes.
var slowScenario = scenarioWithSamples(200000000)

// scenarioWithSamples leaves samples unset when samples is 0.
func scenarioWithSamples(samples int) string {
	samplesLine := ""
	if samples != 0 {
		samplesLine = fmt.Sprintf("samples: %d", samples)
	}
	return fmt.Sprintf(`
client: frontend
edges:
  - {parent: frontend, child: search}
  - {parent: search, child: geo}
endpoints:
  - name: search
    weight: 1
    targets: [search, geo]
simulation:
  %s
  chunk_size: 1024
`, samplesLine)
}

func newTestExecutor() (*RunStore, *RunExecutor) {
	store := NewRunStore()
	return store, NewRunExecutor(store)
}

func waitForStatus(t *testing.T, store *RunStore, runID string, want models.RunStatus) *RunRecord {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := store.Get(runID); ok && rec.Run.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec, _ := store.Get(runID)
	if rec != nil {
		t.Fatalf("run %s: expected status %s, got %s (%s)", runID, want, rec.Run.Status, rec.Run.Error)
	}
	t.Fatalf("run %s: expected status %s, run not found", runID, want)
	return nil
}

func waitForProgress(t *testing.T, store *RunStore, runID string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := store.Get(runID); ok && rec.Run.TrialsDone > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("run %s made no progress", runID)
}
