package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/idle"
	"github.com/idlewatch/idlewatch/pkg/logger"
	"github.com/idlewatch/idlewatch/pkg/probe"
)

func newTestHandler(t *testing.T) (*Handler, *idle.Monitor, *activity.EventBuffer) {
	t.Helper()

	log := logger.New(logger.DefaultConfig())
	tracker := activity.NewTracker()
	events := activity.NewEventBuffer(10)
	monitor := idle.NewMonitor(time.Hour, tracker, log)
	prober := probe.New(probe.Config{Workers: 2, BatchSize: 5, BatchPause: -1}, log)

	h := NewHandler(monitor, tracker, events, prober, nil, "http://localhost:9999", log)
	return h, monitor, events
}

func TestHandleStatus(t *testing.T) {
	h, monitor, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var status map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status response: %v", err)
	}

	if status["threshold_seconds"] != monitor.Threshold().Seconds() {
		t.Errorf("expected threshold_seconds %v, got %v", monitor.Threshold().Seconds(), status["threshold_seconds"])
	}
	if status["watcher_armed"] != false {
		t.Errorf("expected watcher_armed false before any activity, got %v", status["watcher_armed"])
	}
	if _, ok := status["last_activity"]; ok {
		t.Error("expected no last_activity before any activity was recorded")
	}
}

func TestHandleStatusMethodNotAllowed(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}

func TestHandleRecordActivity(t *testing.T) {
	h, monitor, events := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/activity", strings.NewReader(`{"detail":"keepalive ping"}`))
	rec := httptest.NewRecorder()
	h.HandleRecordActivity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !monitor.Armed() {
		t.Error("expected watcher to be armed after recording activity")
	}

	recent := events.Recent(-1)
	if len(recent) != 1 {
		t.Fatalf("expected 1 activity event, got %d", len(recent))
	}
	if recent[0].Source != "api" {
		t.Errorf("expected event source api, got %q", recent[0].Source)
	}
	if recent[0].Detail != "keepalive ping" {
		t.Errorf("expected event detail from request body, got %q", recent[0].Detail)
	}
}

func TestHandleRecordActivityEmptyBody(t *testing.T) {
	h, _, events := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/activity", nil)
	rec := httptest.NewRecorder()
	h.HandleRecordActivity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	recent := events.Recent(-1)
	if len(recent) != 1 || recent[0].Detail != "manual" {
		t.Errorf("expected single event with default detail, got %v", recent)
	}
}

func TestHandleRecentActivity(t *testing.T) {
	h, _, events := newTestHandler(t)

	for i := 0; i < 5; i++ {
		events.Append(activity.Event{Timestamp: time.Now(), Source: "proxy", Detail: "GET /page"})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/activity/recent?limit=3", nil)
	rec := httptest.NewRecorder()
	h.HandleRecentActivity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response struct {
		Events []activity.Event `json:"events"`
		Count  int              `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode activity response: %v", err)
	}
	if response.Count != 3 {
		t.Errorf("expected 3 events with limit=3, got %d", response.Count)
	}
}

func TestHandleProbe(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/banner.jpg" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	h, monitor, _ := newTestHandler(t)

	body := `{"template":"` + upstream.URL + `/v[V]/banner.jpg","values":{"V":["1","2","3"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/probe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleProbe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result ProbeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode probe response: %v", err)
	}
	if result.Found != upstream.URL+"/v2/banner.jpg" {
		t.Errorf("expected the live URL to be found, got %q", result.Found)
	}
	if result.Total != 3 {
		t.Errorf("expected 3 candidates, got %d", result.Total)
	}
	if !monitor.Armed() {
		t.Error("expected probe to rearm the idle timer")
	}
}

func TestHandleProbeBadTemplate(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/probe", strings.NewReader(`{"template":"http://example.com/plain.jpg","values":{}}`))
	rec := httptest.NewRecorder()
	h.HandleProbe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for a template without tags, got %d", rec.Code)
	}
}

func TestHandleProbeInvalidJSON(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/probe", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.HandleProbe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	h, _, _ := newTestHandler(t)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected registered /api/status route to respond 200, got %d", rec.Code)
	}
}
