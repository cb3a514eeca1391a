// Package probe searches a candidate URL set for the first live URL.
//
// Candidates are split round-robin across a fixed pool of workers. Each URL
// is checked with a HEAD request first and a GET fallback; only a 200 counts
// as live. The first hit cancels all remaining work. Workers pause between
// batches to avoid flooding the target host.
package probe

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/idlewatch/idlewatch/pkg/logger"
)

const (
	DefaultWorkers    = 4
	DefaultBatchSize  = 2000
	DefaultBatchPause = 1500 * time.Millisecond

	headTimeout = 8 * time.Second
	getTimeout  = 10 * time.Second
)

// Config controls probe concurrency and pacing
type Config struct {
	Workers    int           // Concurrent workers (default 4)
	BatchSize  int           // URLs per batch between pauses (default 2000)
	BatchPause time.Duration // Pause between batches (0 = default 1.5s, negative = no pause)
	HTTPClient *http.Client  // Optional custom client
}

// Progress reports how far a probe has come
type Progress struct {
	Checked int    `json:"checked"`
	Total   int    `json:"total"`
	Found   string `json:"found,omitempty"`
}

// ProgressFunc receives progress updates during FindFirst
// Called from worker goroutines; implementations must be safe for concurrent use
type ProgressFunc func(Progress)

// Prober checks candidate URLs for liveness
type Prober struct {
	config Config
	client *http.Client
	logger *logger.Logger
}

// New creates a prober with defaults filled in
func New(cfg Config, log *logger.Logger) *Prober {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	// Pacing is part of the probe semantics: the zero value gets the default,
	// and skipping the pause takes an explicit negative.
	if cfg.BatchPause == 0 {
		cfg.BatchPause = DefaultBatchPause
	} else if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Prober{
		config: cfg,
		client: client,
		logger: log.WithComponent("prober"),
	}
}

// FindFirst searches urls for the first one that responds 200.
// Returns the found URL (empty if none), the number of URLs checked, and an
// error only when the context was cancelled before the search finished.
func (p *Prober) FindFirst(ctx context.Context, urls []string, onProgress ProgressFunc) (string, int, error) {
	total := len(urls)
	if total == 0 {
		return "", 0, nil
	}

	start := time.Now()
	p.logger.Info("probe started",
		"total", total,
		"workers", p.config.Workers,
		"batch_size", p.config.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	var checked atomic.Int64

	var mu sync.Mutex
	var found string
	setFound := func(u string) {
		mu.Lock()
		if found == "" {
			found = u
			cancel() // first hit stops all remaining work
		}
		mu.Unlock()
	}
	loadFound := func() string {
		mu.Lock()
		defer mu.Unlock()
		return found
	}

	report := func() {
		if onProgress != nil {
			onProgress(Progress{
				Checked: int(checked.Load()),
				Total:   total,
				Found:   loadFound(),
			})
		}
	}

	for w := 0; w < p.config.Workers; w++ {
		chunk := roundRobinChunk(urls, w, p.config.Workers)
		if len(chunk) == 0 {
			continue
		}

		g.Go(func() error {
			for batchStart := 0; batchStart < len(chunk); batchStart += p.config.BatchSize {
				if gctx.Err() != nil {
					return nil
				}

				batchEnd := batchStart + p.config.BatchSize
				if batchEnd > len(chunk) {
					batchEnd = len(chunk)
				}

				for _, u := range chunk[batchStart:batchEnd] {
					if gctx.Err() != nil {
						return nil
					}
					live := p.CheckURL(gctx, u)
					checked.Add(1)
					if live {
						setFound(u)
						report()
						return nil
					}
				}

				report()

				// Pause between batches to avoid flooding the target
				if batchEnd < len(chunk) && p.config.BatchPause > 0 {
					select {
					case <-time.After(p.config.BatchPause):
					case <-gctx.Done():
						return nil
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", int(checked.Load()), err
	}

	result := loadFound()
	report()
	p.logger.ProbeResult(result, int(checked.Load()), total, time.Since(start), ctx.Err())

	// Cancellation by the caller, not by a hit, is an error
	if result == "" && ctx.Err() != nil {
		return "", int(checked.Load()), ctx.Err()
	}

	return result, int(checked.Load()), nil
}

// CheckURL reports whether a URL responds 200. HEAD first, GET fallback:
// some CDNs reject HEAD but serve GET fine.
func (p *Prober) CheckURL(ctx context.Context, url string) bool {
	if ok, err := p.request(ctx, http.MethodHead, url, headTimeout); err == nil {
		if ok {
			return true
		}
	}

	ok, err := p.request(ctx, http.MethodGet, url, getTimeout)
	return err == nil && ok
}

// request performs a single request and reports whether it returned 200
func (p *Prober) request(ctx context.Context, method, url string, timeout time.Duration) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// roundRobinChunk returns every workers-th URL starting at offset w
func roundRobinChunk(urls []string, w, workers int) []string {
	chunk := make([]string, 0, (len(urls)+workers-1)/workers)
	for i := w; i < len(urls); i += workers {
		chunk = append(chunk, urls[i])
	}
	return chunk
}
