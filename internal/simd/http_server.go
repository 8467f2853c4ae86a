package simd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs endpoint
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id} and related endpoints
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	// Parse path: /v1/runs/{id}, /v1/runs/{id}:start, /v1/runs/{id}:stop,
	// /v1/runs/{id}/report or /v1/runs/{id}/events
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	routes := []struct {
		suffix  string
		method  string
		handler func(http.ResponseWriter, *http.Request, string)
	}{
		{":start", http.MethodPost, s.handleStartRun},
		{":stop", http.MethodPost, s.handleStopRun},
		{"/report", http.MethodGet, s.handleGetReport},
		{"/events", http.MethodGet, s.handleRunEvents},
	}
	for _, route := range routes {
		if !strings.HasSuffix(path, route.suffix) {
			continue
		}
		runID := strings.TrimSuffix(path, route.suffix)
		if r.Method != route.method {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		route.handler(w, r, runID)
		return
	}

	// Otherwise it's GET /v1/runs/{id}
	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// createRunRequest is the body of POST /v1/runs
type createRunRequest struct {
	RunID string    `json:"run_id,omitempty"`
	Input *RunInput `json:"input"`
	Start bool      `json:"start,omitempty"`
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == nil {
		s.writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	if req.Input.CallbackURL != "" {
		if err := validateCallbackURL(req.Input.CallbackURL); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if _, err := s.Executor.BuildEngine(req.Input); err != nil {
		s.writeRunError(w, err)
		return
	}

	rec, err := s.store.Create(req.RunID, req.Input)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	logger.Info("run created (HTTP)", "run_id", rec.Run.ID)

	if req.Start {
		rec, err = s.Executor.Start(rec.Run.ID)
		if err != nil {
			s.writeRunError(w, err)
			return
		}
		logger.Info("run started (HTTP)", "run_id", rec.Run.ID)
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": rec.Run,
	})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 1000)
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var statusFilter models.RunStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		statusFilter = models.ParseRunStatus(statusStr)
		if statusFilter == "" {
			s.writeError(w, http.StatusBadRequest, "unknown status: "+statusStr)
			return
		}
	}

	runs := s.store.ListFiltered(limit, offset, statusFilter)
	out := make([]*models.Run, 0, len(runs))
	for _, rec := range runs {
		out = append(out, rec.Run)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": out,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(out),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": rec.Run,
	})
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Start(runID)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	logger.Info("run started (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

// handleGetReport handles GET /v1/runs/{id}/report[?precision=N]
func (s *HTTPServer) handleGetReport(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Report == nil {
		s.writeError(w, http.StatusPreconditionFailed, "report not available")
		return
	}

	report := rec.Report
	if precisionStr := r.URL.Query().Get("precision"); precisionStr != "" {
		precision, err := strconv.Atoi(precisionStr)
		if err != nil || precision < 0 || precision > 15 {
			s.writeError(w, http.StatusBadRequest, "precision must be an integer between 0 and 15")
			return
		}
		report = report.Round(precision)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
	})
}

// handleRunEvents handles GET /v1/runs/{id}/events as a Server-Sent Events
// stream that ends once the run is terminal.
func (s *HTTPServer) handleRunEvents(w http.ResponseWriter, r *http.Request, runID string) {
	if _, ok := s.store.Get(runID); !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	interval := defaultWatchInterval
	if intervalStr := r.URL.Query().Get("interval_ms"); intervalStr != "" {
		if intervalMs, err := strconv.ParseInt(intervalStr, 10, 64); err == nil && intervalMs > 0 {
			interval = time.Duration(intervalMs) * time.Millisecond
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	err := s.store.Watch(r.Context(), runID, interval, func(ev RunEvent) error {
		if err := s.sendSSEEvent(w, ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && r.Context().Err() == nil {
		logger.Warn("event stream ended", "run_id", runID, "error", err)
	}
}

// sendSSEEvent sends a Server-Sent Event
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, ev RunEvent) error {
	// Format: event: <type>\ndata: <json>\n\n
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal SSE event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, jsonData)
	return err
}

// httpStatusFor maps service errors to HTTP status codes
func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunIDMissing), models.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunExists), errors.Is(err, ErrRunTerminal):
		return http.StatusConflict
	case errors.Is(err, ErrReportNotReady):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// Helper functions

func (s *HTTPServer) writeRunError(w http.ResponseWriter, err error) {
	s.writeError(w, httpStatusFor(err), err.Error())
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
