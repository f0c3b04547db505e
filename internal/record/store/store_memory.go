package store

import (
	"context"
	"sync"

	"custodia/internal/record/models"
)

// InMemoryStore stores records in memory for tests and single-process use.
// Records are deep-copied on the way in and out so callers can never mutate
// stored state without going through Save.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

// New constructs an empty in-memory record store.
func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.Record)}
}

func (s *InMemoryStore) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *InMemoryStore) ListDeletionScheduled(_ context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, record := range s.records {
		if record.Retention.DeletionScheduled {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}
