// Package server provides HTTP server setup and lifecycle management
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/api"
	"github.com/idlewatch/idlewatch/pkg/config"
	"github.com/idlewatch/idlewatch/pkg/health"
	"github.com/idlewatch/idlewatch/pkg/idle"
	"github.com/idlewatch/idlewatch/pkg/logger"
	"github.com/idlewatch/idlewatch/pkg/probe"
	"github.com/idlewatch/idlewatch/pkg/proxy"
	"github.com/idlewatch/idlewatch/pkg/router"
)

// Server represents the HTTP server and its components
type Server struct {
	httpServer *http.Server
	router     *router.Router
	monitor    *idle.Monitor
	tracker    *activity.Tracker
	events     *activity.EventBuffer
	logger     *logger.Logger
	config     *config.Config
	listenPort int
}

// Config contains all dependencies needed to create a server
type Config struct {
	AppConfig  *config.Config
	ListenPort int
	Logger     *logger.Logger
	Version    string
}

// New creates and wires the HTTP server: activity tracking, the idle
// monitor, the upstream proxy, and the control API behind a single router
func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	api.Version = cfg.Version

	tracker := activity.NewTracker()
	events := activity.NewEventBuffer(cfg.AppConfig.ActivityBufferSize)
	monitor := idle.NewMonitor(cfg.AppConfig.Threshold(), tracker, log)

	proxyHandler, err := proxy.NewHandler(
		cfg.AppConfig.Upstream,
		monitor,
		events,
		cfg.AppConfig.StripPrefix,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy handler: %w", err)
	}

	prober := probe.New(probe.Config{}, log)
	checker := health.NewChecker(health.DefaultCheckConfig(cfg.AppConfig.Upstream+cfg.AppConfig.ReadyCheckPath), log)

	mux := http.NewServeMux()
	apiHandler := api.NewHandler(monitor, tracker, events, prober, checker, cfg.AppConfig.Upstream, log)
	apiHandler.RegisterRoutes(mux)

	mainRouter := router.New(router.Config{
		Logger:       log,
		Mux:          mux,
		ProxyHandler: proxyHandler,
		UpstreamURL:  cfg.AppConfig.Upstream,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ListenPort),
		Handler: mainRouter,
	}

	return &Server{
		httpServer: httpServer,
		router:     mainRouter,
		monitor:    monitor,
		tracker:    tracker,
		events:     events,
		logger:     log,
		config:     cfg.AppConfig,
		listenPort: cfg.ListenPort,
	}, nil
}

// Monitor returns the idle monitor so the caller can arm it at startup
func (s *Server) Monitor() *idle.Monitor {
	return s.monitor
}

// Handler returns the root handler, useful for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting proxy server", "port", s.listenPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("proxy server failed", err)
		}
	}()

	proxyURL := fmt.Sprintf("http://127.0.0.1:%d", s.listenPort)
	s.logger.Info("proxy server ready",
		"proxy_url", proxyURL,
		"status_api", fmt.Sprintf("%s/api/status", proxyURL),
		"upstream", s.config.Upstream,
		"idle_threshold", s.monitor.Threshold())
}

// Shutdown stops the HTTP server. Only signal-driven shutdown comes through
// here; an idle timeout exits the process directly without this path.
func (s *Server) Shutdown() {
	s.logger.ShutdownBanner("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	s.logger.Info("stopping proxy server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("proxy server shutdown error", err)
	}

	s.logger.Info("shutdown complete")
}

// SetupSignalHandling configures signal handlers for graceful shutdown
func SetupSignalHandling(ctx context.Context, cancel context.CancelFunc, log *logger.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("received signal, initiating graceful shutdown (press Ctrl+C again to force quit)", "signal", sig)
		cancel()

		sig = <-sigChan
		log.Warn("received second signal, forcing immediate exit", "signal", sig)
		os.Exit(1)
	}()
}
