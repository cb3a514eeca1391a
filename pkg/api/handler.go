// Package api provides HTTP API endpoints for the idle monitor
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/health"
	"github.com/idlewatch/idlewatch/pkg/idle"
	"github.com/idlewatch/idlewatch/pkg/logger"
	"github.com/idlewatch/idlewatch/pkg/probe"
)

var (
	// Version information (set by main package)
	Version string
)

// Handler provides HTTP endpoints for inspecting and driving the idle
// monitor: status, manual activity, recent activity history, and URL probes
type Handler struct {
	monitor  *idle.Monitor
	tracker  *activity.Tracker
	events   *activity.EventBuffer
	prober   *probe.Prober
	checker  *health.Checker
	upstream string
	logger   *logger.Logger
}

// NewHandler creates a new control API handler. The checker is optional; when
// present, /api/status includes a live upstream health probe.
func NewHandler(monitor *idle.Monitor, tracker *activity.Tracker, events *activity.EventBuffer, prober *probe.Prober, checker *health.Checker, upstream string, log *logger.Logger) *Handler {
	return &Handler{
		monitor:  monitor,
		tracker:  tracker,
		events:   events,
		prober:   prober,
		checker:  checker,
		upstream: upstream,
		logger:   log.WithComponent("control-api"),
	}
}

// HandleStatus returns the current idle state
// GET /api/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"version":           Version,
		"upstream":          h.upstream,
		"threshold_seconds": h.monitor.Threshold().Seconds(),
		"poll_seconds":      idle.PollInterval.Seconds(),
		"watcher_armed":     h.monitor.Armed(),
		"activity_stats":    h.events.Stats(),
	}

	if last := h.tracker.LastActivity(); last != nil {
		status["last_activity"] = last.Format(time.RFC3339Nano)
	}
	if idleFor, ok := h.tracker.IdleFor(); ok {
		status["idle_seconds"] = idleFor.Seconds()
	}
	if h.checker != nil {
		status["upstream_healthy"] = h.checker.CheckOnce(r.Context()) == nil
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error("failed to encode status response", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleRecordActivity records a manual activity event, rearming the idle
// timer exactly like a proxied request does
// POST /api/activity
func (h *Handler) HandleRecordActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	detail := "manual"
	if r.Body != nil {
		var body struct {
			Detail string `json:"detail"`
		}
		// Body is optional; a decode failure just keeps the default detail
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Detail != "" {
			detail = body.Detail
		}
	}

	h.monitor.RecordActivity("api")
	h.events.Append(activity.Event{
		Timestamp: time.Now(),
		Source:    "api",
		Detail:    detail,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "activity recorded",
		"threshold_seconds": h.monitor.Threshold().Seconds(),
	})
}

// HandleRecentActivity returns the most recent activity events
// GET /api/activity/recent?limit=100
func (h *Handler) HandleRecentActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	events := h.events.Recent(limit)

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"stats":  h.events.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode activity response", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// RegisterRoutes registers all control API routes with a http.ServeMux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.HandleStatus)
	mux.HandleFunc("/api/activity", h.HandleRecordActivity)
	mux.HandleFunc("/api/activity/recent", h.HandleRecentActivity)
	mux.HandleFunc("/api/probe", h.HandleProbe)
	mux.HandleFunc("/api/probe/ws", h.HandleProbeWS)

	h.logger.Info("control API routes registered",
		"endpoints", []string{
			"GET /api/status",
			"POST /api/activity",
			"GET /api/activity/recent",
			"POST /api/probe",
			"GET /api/probe/ws",
		})
}
