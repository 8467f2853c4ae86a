package simd

import (
	"bufio"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

func newTestHTTPServer() (*HTTPServer, *RunStore) {
	store, exec := newTestExecutor()
	return NewHTTPServer(store, exec), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(raw))
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)

	var resp map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json %q: %v", rr.Body.String(), err)
		}
	}
	return rr, resp
}

func TestHTTPServerHealthz(t *testing.T) {
	srv, _ := newTestHTTPServer()
	rr, body := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestHTTPServerMetricsEndpoint(t *testing.T) {
	srv, _ := newTestHTTPServer()
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestHTTPServerCreateRun(t *testing.T) {
	srv, store := newTestHTTPServer()
	rr, resp := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", map[string]any{
		"run_id": "run-1",
		"input":  map[string]any{"scenario_yaml": smallScenario},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	run, ok := resp["run"].(map[string]any)
	if !ok {
		t.Fatalf("expected run in response")
	}
	if run["id"] != "run-1" || run["status"] != string(models.RunStatusPending) {
		t.Fatalf("unexpected run %v", run)
	}
	if _, ok := store.Get("run-1"); !ok {
		t.Fatalf("expected run in store")
	}

	rr, _ = doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", map[string]any{
		"run_id": "run-1",
		"input":  map[string]any{"scenario_yaml": smallScenario},
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate run, got %d", rr.Code)
	}
}

func TestHTTPServerCreateRunRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing input", map[string]any{}},
		{"malformed scenario", map[string]any{"input": map[string]any{"scenario_yaml": "client: ["}}},
		{"invalid p_fail", map[string]any{"input": map[string]any{"scenario_yaml": smallScenario, "p_fail": 1.5}}},
		{"zero p_fail", map[string]any{"input": map[string]any{"scenario_yaml": smallScenario, "p_fail": 0}}},
		{"zero samples", map[string]any{"input": map[string]any{"scenario_yaml": smallScenario, "samples": 0}}},
		{"unknown model", map[string]any{"input": map[string]any{"scenario_yaml": smallScenario, "model": "weibull"}}},
		{"bad callback", map[string]any{"input": map[string]any{"scenario_yaml": smallScenario, "callback_url": "ftp://x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestHTTPServer()
			rr, resp := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if resp["error"] == "" {
				t.Fatalf("expected error message")
			}
			if runs := store.List(10); len(runs) != 0 {
				t.Fatalf("rejected input must not create a run")
			}
		})
	}

	srv, _ := newTestHTTPServer()
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader("{")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", rr.Code)
	}
}

func TestHTTPServerRunLifecycle(t *testing.T) {
	srv, store := newTestHTTPServer()
	h := srv.Handler()

	rr, _ := doJSON(t, h, http.MethodPost, "/v1/runs", map[string]any{
		"run_id": "run-1",
		"input":  map[string]any{"scenario_yaml": smallScenario, "samples": 1000},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}

	rr, _ = doJSON(t, h, http.MethodGet, "/v1/runs/run-1/report", nil)
	if rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 before completion, got %d", rr.Code)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/v1/runs/run-1:start", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rr.Code, rr.Body.String())
	}
	waitForStatus(t, store, "run-1", models.RunStatusCompleted)
	srv.Executor.Wait()

	rr, resp := doJSON(t, h, http.MethodGet, "/v1/runs/run-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	if run := resp["run"].(map[string]any); run["status"] != string(models.RunStatusCompleted) || run["trials_done"] != float64(1000) {
		t.Fatalf("unexpected run %v", run)
	}

	rr, resp = doJSON(t, h, http.MethodGet, "/v1/runs/run-1/report?precision=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("report: %d %s", rr.Code, rr.Body.String())
	}
	report := resp["report"].(map[string]any)
	if report["samples"] != float64(1000) {
		t.Fatalf("expected 1000 samples, got %v", report["samples"])
	}
	rAvg := report["r_avg"].(float64)
	if math.Abs(rAvg*100-math.Round(rAvg*100)) > 1e-9 {
		t.Fatalf("expected r_avg rounded to 2 decimals, got %v", rAvg)
	}

	rr, _ = doJSON(t, h, http.MethodGet, "/v1/runs/run-1/report?precision=x", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad precision, got %d", rr.Code)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/v1/runs/run-1:start", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 restarting a completed run, got %d", rr.Code)
	}
}

func TestHTTPServerCreateAndStart(t *testing.T) {
	srv, store := newTestHTTPServer()
	rr, resp := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", map[string]any{
		"input": map[string]any{"scenario_yaml": smallScenario},
		"start": true,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	id := resp["run"].(map[string]any)["id"].(string)
	waitForStatus(t, store, id, models.RunStatusCompleted)
	srv.Executor.Wait()
}

func TestHTTPServerStopRun(t *testing.T) {
	srv, store := newTestHTTPServer()
	h := srv.Handler()
	doJSON(t, h, http.MethodPost, "/v1/runs", map[string]any{
		"run_id": "slow",
		"input":  map[string]any{"scenario_yaml": slowScenario},
		"start":  true,
	})
	waitForProgress(t, store, "slow")

	rr, resp := doJSON(t, h, http.MethodPost, "/v1/runs/slow:stop", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stop: %d %s", rr.Code, rr.Body.String())
	}
	if resp["run"].(map[string]any)["status"] != string(models.RunStatusCancelled) {
		t.Fatalf("expected cancelled, got %v", resp["run"])
	}
	srv.Executor.Wait()

	rr, _ = doJSON(t, h, http.MethodGet, "/v1/runs/slow/report", nil)
	if rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 for cancelled run report, got %d", rr.Code)
	}
}

func TestHTTPServerNotFoundAndMethods(t *testing.T) {
	srv, _ := newTestHTTPServer()
	h := srv.Handler()

	tests := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/v1/runs/missing", http.StatusNotFound},
		{http.MethodPost, "/v1/runs/missing:start", http.StatusNotFound},
		{http.MethodPost, "/v1/runs/missing:stop", http.StatusNotFound},
		{http.MethodGet, "/v1/runs/missing/report", http.StatusNotFound},
		{http.MethodGet, "/v1/runs/missing/events", http.StatusNotFound},
		{http.MethodGet, "/v1/runs/", http.StatusBadRequest},
		{http.MethodDelete, "/v1/runs", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/runs/x:start", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/v1/runs/x", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rr, _ := doJSON(t, h, tt.method, tt.path, nil)
		if rr.Code != tt.code {
			t.Fatalf("%s %s: expected %d, got %d", tt.method, tt.path, tt.code, rr.Code)
		}
	}
}

func TestHTTPServerListRuns(t *testing.T) {
	srv, store := newTestHTTPServer()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(id, &RunInput{ScenarioYAML: smallScenario}); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	if _, err := store.SetStatus("b", models.RunStatusCancelled, ""); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}

	rr, resp := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs?limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}
	if runs := resp["runs"].([]any); len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	pagination := resp["pagination"].(map[string]any)
	if pagination["limit"] != float64(2) || pagination["count"] != float64(2) {
		t.Fatalf("unexpected pagination %v", pagination)
	}

	_, resp = doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs?status=CANCELLED", nil)
	runs := resp["runs"].([]any)
	if len(runs) != 1 || runs[0].(map[string]any)["id"] != "b" {
		t.Fatalf("unexpected filtered runs %v", runs)
	}

	rr, _ = doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs?status=bogus", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestHTTPServerRunEventsStream(t *testing.T) {
	srv, store := newTestHTTPServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if _, err := store.Create("run-1", &RunInput{ScenarioYAML: smallScenario}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := srv.Executor.Start("run-1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	resp, err := http.Get(ts.URL + "/v1/runs/run-1/events?interval_ms=5")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	var events []string
	var last RunEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last); err != nil {
				t.Fatalf("invalid event data %q: %v", line, err)
			}
		}
	}
	srv.Executor.Wait()

	if len(events) < 2 || events[0] != EventStatusChange || events[len(events)-1] != EventComplete {
		t.Fatalf("unexpected event sequence %v", events)
	}
	if last.Run == nil || last.Run.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed run in final event, got %+v", last)
	}
}

func TestHTTPStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrRunNotFound, http.StatusNotFound},
		{ErrRunIDMissing, http.StatusBadRequest},
		{models.NewConfigurationError("op", "bad"), http.StatusBadRequest},
		{models.NewMalformedInputError("op", "bad"), http.StatusBadRequest},
		{ErrRunExists, http.StatusConflict},
		{ErrRunTerminal, http.StatusConflict},
		{ErrReportNotReady, http.StatusPreconditionFailed},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := httpStatusFor(tt.err); got != tt.code {
			t.Fatalf("httpStatusFor(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}
