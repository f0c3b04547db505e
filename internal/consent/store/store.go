package store

import (
	"context"

	"custodia/internal/audit"
	"custodia/internal/consent/models"
	dErrors "custodia/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "consent record not found")

// Store persists consent records append-only.
//
// Error Contract:
// - Append persists the consent record and its audit event atomically: either
//   both are observable afterwards or neither is
// - Latest returns ErrNotFound when no record exists for (subject, type)
// - History returns records oldest-first; callers reorder for presentation
// - Infrastructure failures surface as store_unavailable
type Store interface {
	Append(ctx context.Context, record *models.Record, event audit.Event) error
	Latest(ctx context.Context, subject string, ctype models.Type) (*models.Record, error)
	History(ctx context.Context, subject string, ctype models.Type) ([]*models.Record, error)
}
