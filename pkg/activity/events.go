// Package activity - bounded history of recent activity events
package activity

import (
	"container/ring"
	"sync"
	"time"
)

// DefaultEventCapacity is how many events a buffer keeps when no explicit
// capacity is configured
const DefaultEventCapacity = 1000

// Event represents a single recorded activity event
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "proxy" or "api"
	Detail    string    `json:"detail"` // e.g. "GET /dashboard"
}

// EventBuffer is a thread-safe circular buffer of recent activity events
// Keeps the most recent N events for exposure through the control API
type EventBuffer struct {
	mu       sync.RWMutex
	buffer   *ring.Ring
	capacity int
	total    int // Total events recorded (for stats)
}

// NewEventBuffer creates a new event buffer with the specified capacity
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}

	return &EventBuffer{
		buffer:   ring.New(capacity),
		capacity: capacity,
	}
}

// Append adds a new activity event to the buffer
func (eb *EventBuffer) Append(event Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.buffer.Value = event
	eb.buffer = eb.buffer.Next()
	eb.total++
}

// Recent returns the most recent N events, oldest first
// If n <= 0 or n > capacity, returns all available events
func (eb *EventBuffer) Recent(n int) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if n <= 0 || n > eb.capacity {
		n = eb.capacity
	}

	available := eb.total
	if available > eb.capacity {
		available = eb.capacity
	}

	if n > available {
		n = available
	}

	events := make([]Event, 0, n)

	// Start from the oldest entry in the ring
	start := eb.buffer
	if available < eb.capacity {
		for i := 0; i < eb.capacity; i++ {
			if start.Value == nil {
				start = start.Next()
			} else {
				break
			}
		}
	}

	current := start
	for i := 0; i < available; i++ {
		if current.Value != nil {
			if event, ok := current.Value.(Event); ok {
				events = append(events, event)
			}
		}
		current = current.Next()
	}

	if len(events) > n {
		events = events[len(events)-n:]
	}

	return events
}

// Stats returns statistics about the event buffer
func (eb *EventBuffer) Stats() EventStats {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	available := eb.total
	if available > eb.capacity {
		available = eb.capacity
	}

	return EventStats{
		TotalEvents:    eb.total,
		BufferedEvents: available,
		Capacity:       eb.capacity,
		BufferFull:     eb.total >= eb.capacity,
	}
}

// EventStats represents statistics about the event buffer
type EventStats struct {
	TotalEvents    int  `json:"total_events"`    // Total events recorded (lifetime)
	BufferedEvents int  `json:"buffered_events"` // Currently buffered events
	Capacity       int  `json:"capacity"`        // Buffer capacity
	BufferFull     bool `json:"buffer_full"`     // Whether buffer has wrapped
}
