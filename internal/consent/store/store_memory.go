package store

import (
	"context"
	"sync"

	"custodia/internal/audit"
	"custodia/internal/consent/models"
)

// InMemoryStore stores consent records in memory. The paired audit store is
// written under the same lock, and a failed audit append rolls the consent
// append back, so the two writes are atomic with respect to readers.
type InMemoryStore struct {
	mu       sync.RWMutex
	consents map[string]map[models.Type][]*models.Record
	auditLog audit.Store
}

// New constructs an empty in-memory consent store writing audit events to
// the given audit store.
func New(auditLog audit.Store) *InMemoryStore {
	return &InMemoryStore{
		consents: make(map[string]map[models.Type][]*models.Record),
		auditLog: auditLog,
	}
}

func (s *InMemoryStore) Append(ctx context.Context, record *models.Record, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType, ok := s.consents[record.Subject]
	if !ok {
		byType = make(map[models.Type][]*models.Record)
		s.consents[record.Subject] = byType
	}

	copyRecord := *record
	byType[record.Type] = append(byType[record.Type], &copyRecord)

	if err := s.auditLog.Append(ctx, event); err != nil {
		// Roll back the consent append so neither write is observable.
		entries := byType[record.Type]
		byType[record.Type] = entries[:len(entries)-1]
		return err
	}
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, subject string, ctype models.Type) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.consents[subject][ctype]
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	latest := records[0]
	for _, r := range records[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	copyRecord := *latest
	return &copyRecord, nil
}

func (s *InMemoryStore) History(_ context.Context, subject string, ctype models.Type) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.consents[subject][ctype]
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		copyRecord := *r
		out = append(out, &copyRecord)
	}
	return out, nil
}
