package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps audit events in memory, oldest-first per record.
// It backs tests and single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RecordID] = append(s.events[event.RecordID], event)
	return nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[recordID]...), nil
}

func (s *InMemoryStore) CountByRecord(_ context.Context, recordID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[recordID]), nil
}
