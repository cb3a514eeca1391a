// Package health gates startup on upstream readiness and answers one-shot
// liveness queries for the status API.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/idlewatch/idlewatch/pkg/logger"
)

// Package defaults; pkg/config derives its readiness flag defaults from these
const (
	DefaultCheckPath   = "/"
	DefaultTimeout     = 5 * time.Minute
	DefaultInterval    = 1 * time.Second
	DefaultHTTPTimeout = 2 * time.Second

	// failureLogEvery throttles failed-attempt logging at info level; each
	// failure is still visible at debug level
	failureLogEvery = 15
)

// CheckConfig holds configuration for upstream readiness checking
type CheckConfig struct {
	URL              string        // URL to check (e.g., http://localhost:8501/health)
	Timeout          time.Duration // Overall timeout for ready state
	Interval         time.Duration // Interval between checks
	InitialDelay     time.Duration // Delay before first check
	SuccessThreshold int           // Number of consecutive successes required
	HTTPTimeout      time.Duration // Timeout for individual HTTP requests
}

// DefaultCheckConfig returns sensible defaults for readiness checking
func DefaultCheckConfig(url string) CheckConfig {
	return CheckConfig{
		URL:              url,
		Timeout:          DefaultTimeout,
		Interval:         DefaultInterval,
		InitialDelay:     2 * time.Second,
		SuccessThreshold: 1,
		HTTPTimeout:      DefaultHTTPTimeout,
	}
}

// Checker performs readiness checks against the upstream application
type Checker struct {
	config CheckConfig
	logger *logger.Logger
	client *http.Client
}

// NewChecker creates a new upstream readiness checker
func NewChecker(cfg CheckConfig, log *logger.Logger) *Checker {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}

	return &Checker{
		config: cfg,
		logger: log.WithComponent("upstream-checker"),
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			// A redirecting upstream still counts as answering
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// WaitUntilReady blocks until the upstream answers SuccessThreshold
// consecutive times, the timeout lapses, or the context is cancelled
func (c *Checker) WaitUntilReady(ctx context.Context) error {
	c.logger.Info("waiting for upstream",
		"url", c.config.URL,
		"timeout", c.config.Timeout,
		"interval", c.config.Interval)

	if c.config.InitialDelay > 0 {
		select {
		case <-time.After(c.config.InitialDelay):
		case <-ctx.Done():
			return fmt.Errorf("cancelled before first upstream check: %w", ctx.Err())
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	maxAttempts := int(c.config.Timeout / c.config.Interval)
	attempt := 0
	streak := 0

	for {
		select {
		case <-waitCtx.Done():
			c.logger.Error("upstream never became ready",
				waitCtx.Err(),
				"attempts", attempt,
				"url", c.config.URL,
				"timeout", c.config.Timeout)
			return fmt.Errorf("upstream not ready after %d attempts: %w", attempt, waitCtx.Err())

		case <-ticker.C:
			attempt++
			start := time.Now()
			err := c.check(waitCtx)
			latency := time.Since(start)

			if err != nil {
				streak = 0
				c.logger.Debug("upstream not ready yet",
					"attempt", attempt,
					"max_attempts", maxAttempts,
					"latency", latency,
					"error", err)
				if attempt == 1 || attempt%failureLogEvery == 0 {
					c.logger.UpstreamCheck(attempt, maxAttempts, c.config.URL, false, latency, err)
				}
				continue
			}

			streak++
			c.logger.UpstreamCheck(attempt, maxAttempts, c.config.URL, true, latency, nil)
			if streak >= c.config.SuccessThreshold {
				c.logger.Info("upstream is ready",
					"attempts", attempt,
					"url", c.config.URL)
				return nil
			}
		}
	}
}

// check performs a single readiness check
func (c *Checker) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "idlewatch-readiness-check/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// 2xx and 3xx both count: readiness endpoints often answer with redirects
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}

	return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
}

// CheckOnce performs a single readiness check; backs /api/status
func (c *Checker) CheckOnce(ctx context.Context) error {
	start := time.Now()
	err := c.check(ctx)
	latency := time.Since(start)

	c.logger.UpstreamCheck(1, 1, c.config.URL, err == nil, latency, err)
	return err
}
