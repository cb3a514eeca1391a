package idle

import (
	"testing"
	"time"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/logger"
)

// newTestMonitor returns a monitor with a fast poll interval and an exit
// function that signals the returned channel instead of ending the process
func newTestMonitor(t *testing.T, threshold, poll time.Duration) (*Monitor, chan int) {
	t.Helper()

	exited := make(chan int, 1)
	m := NewMonitor(threshold, activity.NewTracker(), logger.New(logger.DefaultConfig()))
	m.poll = poll
	m.exit = func(code int) {
		exited <- code
	}
	return m, exited
}

func TestMonitorDefaultThreshold(t *testing.T) {
	m := NewMonitor(0, activity.NewTracker(), logger.New(logger.DefaultConfig()))
	if m.Threshold() != 300*time.Second {
		t.Errorf("expected default threshold of 300s, got %v", m.Threshold())
	}
}

func TestMonitorNotArmedBeforeActivity(t *testing.T) {
	m, _ := newTestMonitor(t, time.Second, 10*time.Millisecond)
	if m.Armed() {
		t.Error("expected watcher not to be armed before first activity")
	}
}

func TestMonitorSingleWatcher(t *testing.T) {
	m, _ := newTestMonitor(t, time.Hour, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		m.RecordActivity("api")
	}

	if !m.Armed() {
		t.Fatal("expected watcher to be armed after activity")
	}

	m.mu.Lock()
	starts := m.watcherStarts
	m.mu.Unlock()
	if starts != 1 {
		t.Errorf("expected exactly one watcher start, got %d", starts)
	}
}

func TestMonitorTerminatesAfterThreshold(t *testing.T) {
	// threshold 50ms, poll 20ms: termination expected within one poll
	// interval of crossing the threshold
	m, exited := newTestMonitor(t, 50*time.Millisecond, 20*time.Millisecond)

	start := time.Now()
	m.RecordActivity("proxy")

	select {
	case code := <-exited:
		if code != 0 {
			t.Errorf("expected exit code 0, got %d", code)
		}
		elapsed := time.Since(start)
		if elapsed < 50*time.Millisecond {
			t.Errorf("terminated before threshold: %v", elapsed)
		}
		if elapsed > 200*time.Millisecond {
			t.Errorf("terminated too late: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("expected termination after idle threshold, got none")
	}
}

func TestMonitorStaysAliveWhileActive(t *testing.T) {
	// Activity every 20ms stays well inside the 100ms threshold
	m, exited := newTestMonitor(t, 100*time.Millisecond, 10*time.Millisecond)

	done := time.After(300 * time.Millisecond)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RecordActivity("proxy")
		case <-exited:
			t.Fatal("process terminated despite continuous activity")
		case <-done:
			return
		}
	}
}

func TestMonitorRearmDelaysTermination(t *testing.T) {
	// Record at t=0 and t=80ms with a 100ms threshold: no termination
	// may happen before t=180ms
	m, exited := newTestMonitor(t, 100*time.Millisecond, 10*time.Millisecond)

	start := time.Now()
	m.RecordActivity("proxy")

	time.Sleep(80 * time.Millisecond)
	m.RecordActivity("proxy")

	select {
	case <-exited:
		elapsed := time.Since(start)
		if elapsed < 180*time.Millisecond {
			t.Errorf("terminated too early after rearm: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("expected termination once activity stopped, got none")
	}
}
