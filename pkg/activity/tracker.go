// Package activity provides activity tracking for idle-shutdown enforcement
package activity

import (
	"sync"
	"time"
)

// Tracker records the last activity timestamp in a thread-safe manner
// Used to decide when the process has been idle long enough to shut down
type Tracker struct {
	mu           sync.RWMutex
	lastActivity *time.Time
}

// NewTracker creates a new activity tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record records the current time as the last activity timestamp
// This should be called on every proxied request and every reported event
func (t *Tracker) Record() {
	// time.Now carries a monotonic reading, so elapsed computations are
	// immune to wall clock adjustments
	now := time.Now()
	t.mu.Lock()
	t.lastActivity = &now
	t.mu.Unlock()
}

// LastActivity returns the last recorded activity timestamp
// Returns nil if no activity has been recorded yet
func (t *Tracker) LastActivity() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastActivity
}

// IdleFor returns how long ago the last activity was recorded
// The second return value is false if no activity has been recorded yet
func (t *Tracker) IdleFor() (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastActivity == nil {
		return 0, false
	}
	return time.Since(*t.lastActivity), true
}
