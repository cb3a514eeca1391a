package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/idlewatch/idlewatch/pkg/linkgen"
	"github.com/idlewatch/idlewatch/pkg/probe"
)

// upgrader for the probe progress stream. The control API is only reachable
// on the local listener, so cross-origin checks are not enforced here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// probeRequestWait bounds how long a connected client may take to send the
// request frame before the handler gives up (var so tests can shorten it)
var probeRequestWait = 30 * time.Second

// ProbeRequest describes a candidate URL search: a tagged template plus the
// values to substitute for each tag
type ProbeRequest struct {
	Template         string              `json:"template"`
	Values           map[string][]string `json:"values"`
	VariantTags      []string            `json:"variant_tags,omitempty"`
	BasenameVariants []string            `json:"basename_variants,omitempty"`
	MaxCombinations  int                 `json:"max_combinations,omitempty"`
}

// ProbeResponse is the final result of a probe
type ProbeResponse struct {
	Found      string `json:"found,omitempty"`
	Checked    int    `json:"checked"`
	Total      int    `json:"total"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// expandCandidates turns a probe request into the concrete URL set
func (h *Handler) expandCandidates(req ProbeRequest) ([]string, error) {
	if err := linkgen.ValidateTemplate(req.Template); err != nil {
		return nil, err
	}

	urls, err := linkgen.Expand(req.Template, req.Values, linkgen.Options{
		VariantTags:     req.VariantTags,
		MaxCombinations: req.MaxCombinations,
	})
	if err != nil {
		return nil, err
	}

	return linkgen.ExpandBasenameVariants(urls, req.BasenameVariants), nil
}

// HandleProbe expands a URL template and searches the candidates for the
// first live URL, blocking until the search finishes
// POST /api/probe
func (h *Handler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	urls, err := h.expandCandidates(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A probe is user activity: rearm the idle timer before the search
	h.monitor.RecordActivity("api")

	start := time.Now()
	found, checked, err := h.prober.FindFirst(r.Context(), urls, nil)

	response := ProbeResponse{
		Found:      found,
		Checked:    checked,
		Total:      len(urls),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		response.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode probe response", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// wsMessage is a single frame on the probe progress stream
type wsMessage struct {
	Type     string          `json:"type"` // "progress" or "result"
	Progress *probe.Progress `json:"progress,omitempty"`
	Result   *ProbeResponse  `json:"result,omitempty"`
}

// HandleProbeWS runs a probe over a websocket, streaming progress frames as
// the search advances and a final result frame when it finishes. The client
// sends one ProbeRequest frame, then only reads.
// GET /api/probe/ws
func (h *Handler) HandleProbeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade probe websocket", err)
		return
	}
	defer conn.Close()

	// A client that connects and never sends a frame must not pin this
	// goroutine until the TCP connection dies
	conn.SetReadDeadline(time.Now().Add(probeRequestWait))

	var req ProbeRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(wsMessage{Type: "result", Result: &ProbeResponse{
			Error: fmt.Sprintf("invalid probe request: %v", err),
		}})
		return
	}
	conn.SetReadDeadline(time.Time{})

	urls, err := h.expandCandidates(req)
	if err != nil {
		conn.WriteJSON(wsMessage{Type: "result", Result: &ProbeResponse{
			Error: err.Error(),
		}})
		return
	}

	h.monitor.RecordActivity("api")

	// Progress callbacks arrive from worker goroutines; gorilla connections
	// allow one concurrent writer, so frames are funneled through a channel
	updates := make(chan probe.Progress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range updates {
			if err := conn.WriteJSON(wsMessage{Type: "progress", Progress: &p}); err != nil {
				return
			}
		}
	}()

	start := time.Now()
	found, checked, probeErr := h.prober.FindFirst(r.Context(), urls, func(p probe.Progress) {
		select {
		case updates <- p:
		default: // drop updates rather than stall the workers
		}
	})
	close(updates)
	<-done

	result := ProbeResponse{
		Found:      found,
		Checked:    checked,
		Total:      len(urls),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if probeErr != nil {
		result.Error = probeErr.Error()
	}

	if err := conn.WriteJSON(wsMessage{Type: "result", Result: &result}); err != nil {
		h.logger.Error("failed to write probe result frame", err)
	}
}
