package models

import (
	"strings"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

// RunStatus represents the status of an estimation run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ParseRunStatus parses a status name case-insensitively. Unknown names return "".
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RunStatusPending:
		return RunStatusPending
	case RunStatusRunning:
		return RunStatusRunning
	case RunStatusCompleted:
		return RunStatusCompleted
	case RunStatusFailed:
		return RunStatusFailed
	case RunStatusCancelled:
		return RunStatusCancelled
	}
	return ""
}

// Run represents one estimation run managed by the run service
type Run struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
	TrialsDone      int64     `json:"trials_done"`
	TrialsTotal     int64     `json:"trials_total"`
	Error           string    `json:"error,omitempty"`
}

// EndpointEstimate is the empirical availability of one endpoint.
type EndpointEstimate struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Successes   int64   `json:"successes"`
	Probability float64 `json:"probability"`
	StdErr      float64 `json:"std_err"`
	CI95        float64 `json:"ci95"`
}

// Report is the terminal artifact of an estimation run.
type Report struct {
	Client          string             `json:"client"`
	Model           string             `json:"model"`
	Samples         int                `json:"samples"`
	PFail           float64            `json:"p_fail"`
	Seed            int64              `json:"seed"`
	Replication     bool               `json:"replication"`
	TotalContainers int                `json:"total_containers"`
	KilledPerTrial  int                `json:"killed_per_trial,omitempty"`
	Degenerate      bool               `json:"degenerate,omitempty"`
	Endpoints       []EndpointEstimate `json:"endpoints"`
	RAvg            float64            `json:"r_avg"`
	RAvgStdErr      float64            `json:"r_avg_std_err"`
	RAvgCI95        float64            `json:"r_avg_ci95"`
	ElapsedMs       int64              `json:"elapsed_ms"`
}

// Endpoint returns the estimate for a named endpoint.
func (r *Report) Endpoint(name string) (EndpointEstimate, bool) {
	for _, ep := range r.Endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EndpointEstimate{}, false
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Endpoints = append([]EndpointEstimate(nil), r.Endpoints...)
	return &out
}

// Round returns a copy of the report with every estimate rounded to
// decimals places. Counts are left untouched.
func (r *Report) Round(decimals int) *Report {
	out := r.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Endpoints {
		ep := &out.Endpoints[i]
		ep.Probability = utils.Round(ep.Probability, decimals)
		ep.StdErr = utils.Round(ep.StdErr, decimals)
		ep.CI95 = utils.Round(ep.CI95, decimals)
	}
	out.RAvg = utils.Round(out.RAvg, decimals)
	out.RAvgStdErr = utils.Round(out.RAvgStdErr, decimals)
	out.RAvgCI95 = utils.Round(out.RAvgCI95, decimals)
	return out
}
