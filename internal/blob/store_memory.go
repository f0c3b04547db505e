package blob

import (
	"context"
	"sync"

	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// InMemoryStore holds content in memory for tests and single-process use.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New constructs an empty in-memory blob store.
func New() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, content []byte) (string, error) {
	if len(content) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "content required")
	}
	locator := locatorScheme + uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[locator] = append([]byte{}, content...)
	return locator, nil
}

func (s *InMemoryStore) Get(_ context.Context, locator string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blobs[locator]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, content...), nil
}
