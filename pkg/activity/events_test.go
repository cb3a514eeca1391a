package activity

import (
	"fmt"
	"testing"
	"time"
)

func TestEventBufferAppendAndRecent(t *testing.T) {
	eb := NewEventBuffer(10)

	for i := 0; i < 5; i++ {
		eb.Append(Event{
			Timestamp: time.Now(),
			Source:    "proxy",
			Detail:    fmt.Sprintf("GET /page/%d", i),
		})
	}

	events := eb.Recent(3)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[2].Detail != "GET /page/4" {
		t.Errorf("expected most recent event last, got %q", events[2].Detail)
	}
}

func TestEventBufferWrapAround(t *testing.T) {
	eb := NewEventBuffer(5)

	for i := 0; i < 12; i++ {
		eb.Append(Event{
			Timestamp: time.Now(),
			Source:    "api",
			Detail:    fmt.Sprintf("event-%d", i),
		})
	}

	events := eb.Recent(-1)
	if len(events) != 5 {
		t.Fatalf("expected 5 buffered events after wrap, got %d", len(events))
	}
	if events[0].Detail != "event-7" {
		t.Errorf("expected oldest buffered event to be event-7, got %q", events[0].Detail)
	}
	if events[4].Detail != "event-11" {
		t.Errorf("expected newest buffered event to be event-11, got %q", events[4].Detail)
	}
}

func TestEventBufferStats(t *testing.T) {
	eb := NewEventBuffer(3)

	stats := eb.Stats()
	if stats.TotalEvents != 0 || stats.BufferedEvents != 0 || stats.BufferFull {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	for i := 0; i < 4; i++ {
		eb.Append(Event{Timestamp: time.Now(), Source: "proxy"})
	}

	stats = eb.Stats()
	if stats.TotalEvents != 4 {
		t.Errorf("expected 4 total events, got %d", stats.TotalEvents)
	}
	if stats.BufferedEvents != 3 {
		t.Errorf("expected 3 buffered events, got %d", stats.BufferedEvents)
	}
	if !stats.BufferFull {
		t.Error("expected buffer to report full after wrap")
	}
}

func TestEventBufferDefaultCapacity(t *testing.T) {
	eb := NewEventBuffer(0)
	if eb.Stats().Capacity != DefaultEventCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultEventCapacity, eb.Stats().Capacity)
	}
}
