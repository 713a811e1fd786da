package sinks

import (
	"context"
	"sync"

	"arena/server/logging"
)

// MemorySink retains every event; used by tests and the debug endpoint.
type MemorySink struct {
	mu     sync.RWMutex
	events []logging.Event
	limit  int
}

// NewMemorySink keeps at most limit events (oldest evicted). Zero keeps all.
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{events: make([]logging.Event, 0), limit: limit}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, logging.CloneEvent(event))
	if s.limit > 0 && len(s.events) > s.limit {
		s.events = append(s.events[:0], s.events[len(s.events)-s.limit:]...)
	}
	return nil
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]logging.Event, len(s.events))
	copy(copied, s.events)
	return copied
}

// EventsOfType filters the retained events.
func (s *MemorySink) EventsOfType(eventType logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []logging.Event
	for _, event := range s.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
