// Package proxy provides HTTP reverse proxying to the upstream application
//
// This package is responsible ONLY for forwarding requests to the upstream.
// Every forwarded request counts as activity and rearms the idle timer;
// routing between the control API and the proxy happens in pkg/router.
package proxy

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/logger"
)

// ActivityRecorder receives one call per forwarded request
type ActivityRecorder interface {
	RecordActivity(source string)
}

// Handler forwards HTTP requests to the upstream application
type Handler struct {
	upstreamURL  string
	reverseProxy *httputil.ReverseProxy
	recorder     ActivityRecorder
	events       *activity.EventBuffer
	logger       *logger.Logger
	stripPrefix  string // Path prefix stripped before forwarding, empty to forward as-is
}

// NewHandler creates a new proxy handler
func NewHandler(upstreamURL string, recorder ActivityRecorder, events *activity.EventBuffer, stripPrefix string, log *logger.Logger) (*Handler, error) {
	target, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", upstreamURL, err)
	}

	return &Handler{
		upstreamURL:  upstreamURL,
		reverseProxy: httputil.NewSingleHostReverseProxy(target),
		recorder:     recorder,
		events:       events,
		logger:       log.WithComponent("proxy"),
		stripPrefix:  strings.TrimSuffix(stripPrefix, "/"),
	}, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	originalPath := r.URL.Path
	forwardPath := originalPath

	// Check if this is a WebSocket upgrade request
	upgrade := r.Header.Get("Upgrade")
	connection := r.Header.Get("Connection")
	isWebSocket := strings.EqualFold(upgrade, "websocket") && strings.Contains(strings.ToLower(connection), "upgrade")

	// Forwarded traffic is what keeps the process alive
	h.recordActivity(r)

	h.logger.Info("incoming request",
		"method", r.Method,
		"path", originalPath,
		"query", r.URL.RawQuery,
		"remote_addr", r.RemoteAddr)

	// Log full headers at DEBUG level
	h.logger.Debug("incoming request headers",
		"headers", r.Header)

	// Create response writer wrapper to capture response details
	rw := &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	if isWebSocket {
		h.logger.Info("WebSocket upgrade request detected",
			"path", originalPath,
			"remote_addr", r.RemoteAddr)
	}

	if h.stripPrefix != "" && strings.HasPrefix(originalPath, h.stripPrefix) {
		// Strip the configured prefix from the path
		// e.g. /apps/dashboard/index.html -> /dashboard/index.html
		if len(originalPath) > len(h.stripPrefix) {
			forwardPath = originalPath[len(h.stripPrefix):]
		} else {
			forwardPath = "/"
		}

		newReq := r.Clone(r.Context())
		newReq.URL.Path = forwardPath

		h.logger.Debug("proxying request to upstream (prefix stripped)",
			"original_path", originalPath,
			"forwarded_path", forwardPath,
			"strip_prefix", h.stripPrefix,
			"method", r.Method)

		h.reverseProxy.ServeHTTP(rw, newReq)
	} else {
		h.logger.Debug("proxying request to upstream",
			"path", originalPath,
			"upstream_url", h.upstreamURL,
			"method", r.Method)

		h.reverseProxy.ServeHTTP(rw, r)
	}

	// For WebSocket connections, the connection is hijacked and this code may
	// not execute. If it does (e.g. upgrade failed), log appropriately.
	if !isWebSocket {
		h.logger.Debug("response sent to client",
			"status_code", rw.statusCode,
			"path", originalPath)
	}
}

// recordActivity rearms the idle timer and appends to the event history
func (h *Handler) recordActivity(r *http.Request) {
	if h.recorder != nil {
		h.recorder.RecordActivity("proxy")
	}
	if h.events != nil {
		h.events.Append(activity.Event{
			Timestamp: time.Now(),
			Source:    "proxy",
			Detail:    fmt.Sprintf("%s %s", r.Method, r.URL.Path),
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack implements http.Hijacker interface for WebSocket upgrades
// This allows the reverse proxy to take control of the underlying TCP connection
// for protocol upgrades like WebSocket (HTTP/1.1 101 Switching Protocols)
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("responseWriter: underlying ResponseWriter does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

// Flush implements http.Flusher interface for streaming responses
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Push implements http.Pusher interface for HTTP/2 server push
func (rw *responseWriter) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := rw.ResponseWriter.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return fmt.Errorf("responseWriter: underlying ResponseWriter does not implement http.Pusher")
}
