package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"
	"github.com/rpattn/tamperlog/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrackerRecordsOutcomes(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(domain.RunSummary{RunID: "a", EndWatermark: 105}, nil)
	tracker.Record(domain.RunSummary{RunID: "b", EndWatermark: 103}, errors.New("target down"))

	snap := tracker.Snapshot()
	if snap.Cycles != 2 || snap.FailedCycles != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.LastTamperLogID != 105 {
		t.Fatalf("watermark should never move backwards, got %d", snap.LastTamperLogID)
	}
	if snap.LastError != "target down" || snap.LastSummary.RunID != "b" {
		t.Fatalf("unexpected last cycle: %+v", snap)
	}
	if snap.LastSuccessAt == nil {
		t.Fatal("last success should be kept after a failure")
	}

	tracker.Record(domain.RunSummary{RunID: "c", EndWatermark: 110}, nil)
	if snap := tracker.Snapshot(); snap.LastError != "" {
		t.Fatalf("error should clear after a successful cycle: %q", snap.LastError)
	}
}

func TestHealthzReportsSnapshot(t *testing.T) {
	tracker := NewTracker()
	tracker.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	tracker.Record(domain.RunSummary{RunID: "run-1", RowsInserted: 5, EndWatermark: 105}, nil)

	handler := NewHTTPHandler(tracker, prometheus.NewRegistry(), Options{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status          string `json:"status"`
		Cycles          int64  `json:"cycles"`
		LastTamperLogID int64  `json:"last_tamper_log_id"`
		LastSummary     struct {
			RunID        string `json:"run_id"`
			RowsInserted int64  `json:"rows_inserted"`
		} `json:"last_summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "ok" || body.Cycles != 1 || body.LastTamperLogID != 105 || body.LastSummary.RunID != "run-1" || body.LastSummary.RowsInserted != 5 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthzFailingAfterCycleError(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(domain.RunSummary{RunID: "run-1"}, errors.New("source down"))

	handler := NewHTTPHandler(tracker, prometheus.NewRegistry(), Options{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "source down") {
		t.Fatalf("body does not carry the error: %s", rec.Body.String())
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetWatermark(105)

	handler := NewHTTPHandler(NewTracker(), reg, Options{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tamperlog_last_tamper_log_id 105") {
		t.Fatalf("metrics output missing watermark:\n%s", rec.Body.String())
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := NewHTTPHandler(NewTracker(), prometheus.NewRegistry(), Options{AllowedOrigins: []string{"https://ops.example.com"}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	if rec.Body.String() != "live" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestFailingHealthzIsNotLogged(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(domain.RunSummary{RunID: "run-1"}, errors.New("target down"))

	core, logs := observer.New(zapcore.DebugLevel)
	handler := NewHTTPHandler(tracker, prometheus.NewRegistry(), Options{}, zap.New(core))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no request log entries for /healthz, got %d", logs.Len())
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if entries := logs.FilterMessage("http request").All(); len(entries) != 1 || entries[0].ContextMap()["path"] != "/metrics" {
		t.Fatalf("expected one request log entry for /metrics, got %d", logs.Len())
	}
}
