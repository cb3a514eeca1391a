// Package idle enforces an idle-shutdown policy for the process.
//
// A Monitor tracks the last recorded activity and, once activity has been
// seen at least once, polls in the background. When the time since the last
// activity exceeds the configured threshold, the monitor emits a shutdown
// notice and ends the process immediately, skipping all cleanup. The hard
// exit is deliberate: a stale app should not linger to drain in-flight work.
package idle

import (
	"os"
	"sync"
	"time"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/logger"
)

const (
	// PollInterval is how often the watcher compares idle time to the
	// threshold. Fixed on purpose; only the threshold is configurable.
	PollInterval = 5 * time.Second

	// DefaultThreshold applies when SHUTDOWN_TIME is not set
	DefaultThreshold = 300 * time.Second
)

// Monitor watches recorded activity and terminates the process when the
// idle threshold is exceeded. At most one watcher goroutine is ever started.
type Monitor struct {
	tracker   *activity.Tracker
	threshold time.Duration
	logger    *logger.Logger

	mu            sync.Mutex
	watcherActive bool
	watcherStarts int

	// Overridable in tests
	poll time.Duration
	exit func(code int)
}

// NewMonitor creates an idle monitor with the given threshold.
// The tracker is shared with the components that record activity.
func NewMonitor(threshold time.Duration, tracker *activity.Tracker, log *logger.Logger) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{
		tracker:   tracker,
		threshold: threshold,
		logger:    log.WithComponent("idle-monitor"),
		poll:      PollInterval,
		exit:      os.Exit,
	}
}

// RecordActivity stamps the current time as the last activity and starts the
// background watcher on first call. Safe to call from any goroutine; the
// handle check guarantees duplicate calls never spawn a second watcher.
func (m *Monitor) RecordActivity(source string) {
	m.tracker.Record()
	m.logger.ActivityRecorded(source, m.threshold)

	m.mu.Lock()
	if !m.watcherActive {
		m.watcherActive = true
		m.watcherStarts++
		go m.watch()
	}
	m.mu.Unlock()
}

// Threshold returns the configured idle threshold
func (m *Monitor) Threshold() time.Duration {
	return m.threshold
}

// Armed reports whether the background watcher has been started
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watcherActive
}

// watch polls until the idle threshold is exceeded, then terminates.
// There is no cancel path: the watcher lives until process exit.
func (m *Monitor) watch() {
	m.logger.Info("idle watcher started",
		"threshold", m.threshold,
		"poll_interval", m.poll)

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for range ticker.C {
		idle, ok := m.tracker.IdleFor()
		if !ok {
			continue
		}
		if idle > m.threshold {
			m.terminate(idle)
			return
		}
	}
}

// terminate emits the shutdown notice and ends the process with no cleanup
func (m *Monitor) terminate(idle time.Duration) {
	m.logger.IdleShutdown(idle, m.threshold)
	m.exit(0)
}
