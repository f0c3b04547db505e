package store

import (
	"context"

	"custodia/internal/record/models"
	dErrors "custodia/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// Store persists protection records.
//
// Error Contract:
// - Get returns ErrNotFound when no record exists
// - Save upserts the full record; partial field updates never happen at this
//   layer, the lifecycle service owns record mutation
// - Delete removes the record entirely; deleting a missing record is not an
//   error. The lifecycle service uses it to unwind a create whose audit
//   append failed
// - Implementations return transactionally consistent snapshots: a reader
//   never observes new ciphertext with a stale integrity hash
// - Infrastructure failures surface as store_unavailable
type Store interface {
	Save(ctx context.Context, record *models.Record) error
	Get(ctx context.Context, id string) (*models.Record, error)
	Delete(ctx context.Context, id string) error
	ListDeletionScheduled(ctx context.Context) ([]*models.Record, error)
}
