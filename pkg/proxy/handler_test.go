package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/logger"
)

type recorderSpy struct {
	calls   int
	sources []string
}

func (r *recorderSpy) RecordActivity(source string) {
	r.calls++
	r.sources = append(r.sources, source)
}

func newTestHandler(t *testing.T, upstream string, stripPrefix string) (*Handler, *recorderSpy, *activity.EventBuffer) {
	t.Helper()

	spy := &recorderSpy{}
	events := activity.NewEventBuffer(10)
	log := logger.New(logger.DefaultConfig())

	h, err := NewHandler(upstream, spy, events, stripPrefix, log)
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return h, spy, events
}

func TestHandlerForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "upstream says hello")
	}))
	defer upstream.Close()

	h, _, _ := newTestHandler(t, upstream.URL, "")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "upstream says hello" {
		t.Errorf("expected upstream body, got %q", body)
	}
}

func TestHandlerRecordsActivityPerRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, spy, events := newTestHandler(t, upstream.URL, "")

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/page", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if spy.calls != 3 {
		t.Errorf("expected 3 activity records, got %d", spy.calls)
	}
	for _, source := range spy.sources {
		if source != "proxy" {
			t.Errorf("expected activity source proxy, got %q", source)
		}
	}

	recent := events.Recent(-1)
	if len(recent) != 3 {
		t.Errorf("expected 3 activity events, got %d", len(recent))
	}
	if recent[0].Detail != "GET /page" {
		t.Errorf("expected event detail with method and path, got %q", recent[0].Detail)
	}
}

func TestHandlerRecordsActivityEvenWhenUpstreamErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	h, spy, _ := newTestHandler(t, upstream.URL, "")

	req := httptest.NewRequest(http.MethodGet, "/broken", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status 502 to pass through, got %d", rec.Code)
	}
	if spy.calls != 1 {
		t.Errorf("expected activity to be recorded regardless of upstream status, got %d calls", spy.calls)
	}
}

func TestHandlerStripsPrefix(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "prefix with remainder", path: "/apps/dashboard/index.html", expected: "/dashboard/index.html"},
		{name: "exact prefix", path: "/apps", expected: "/"},
		{name: "unrelated path forwarded as-is", path: "/other", expected: "/other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandler(t, upstream.URL, "/apps")

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			h.ServeHTTP(httptest.NewRecorder(), req)

			if gotPath != tt.expected {
				t.Errorf("expected upstream path %q, got %q", tt.expected, gotPath)
			}
		})
	}
}

func TestNewHandlerInvalidUpstream(t *testing.T) {
	log := logger.New(logger.DefaultConfig())
	_, err := NewHandler("://not-a-url", &recorderSpy{}, nil, "", log)
	if err == nil {
		t.Error("expected error for invalid upstream URL, got nil")
	}
}
