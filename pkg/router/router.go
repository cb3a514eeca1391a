// Package router dispatches requests between the control API and the proxy
package router

import (
	"net/http"
	"strings"

	"github.com/idlewatch/idlewatch/pkg/logger"
	"github.com/idlewatch/idlewatch/pkg/proxy"
)

// apiPrefix is reserved for the control API and never forwarded upstream
const apiPrefix = "/api/"

// Router sends /api/* requests to the control mux and everything else
// through the activity-recording proxy. Control API traffic is intentionally
// excluded from activity tracking: polling /api/status must not keep an
// otherwise idle app alive.
type Router struct {
	log          *logger.Logger
	mux          *http.ServeMux
	proxyHandler *proxy.Handler
	upstreamURL  string
}

// Config contains configuration for the router
type Config struct {
	Logger       *logger.Logger
	Mux          *http.ServeMux
	ProxyHandler *proxy.Handler
	UpstreamURL  string
}

// New creates a new router with the given configuration
func New(cfg Config) *Router {
	return &Router{
		log:          cfg.Logger.WithComponent("router"),
		mux:          cfg.Mux,
		proxyHandler: cfg.ProxyHandler,
		upstreamURL:  cfg.UpstreamURL,
	}
}

// ServeHTTP implements http.Handler
func (rtr *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if strings.HasPrefix(path, apiPrefix) {
		rtr.log.Debug("routing to control API",
			"method", r.Method,
			"path", path,
			"remote_addr", r.RemoteAddr)
		rtr.mux.ServeHTTP(w, r)
		return
	}

	rtr.log.Debug("proxying to upstream",
		"method", r.Method,
		"path", path,
		"upstream_url", rtr.upstreamURL)
	rtr.proxyHandler.ServeHTTP(w, r)
}
