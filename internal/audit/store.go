package audit

import (
	"context"

	dErrors "custodia/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "audit event not found")

// Store persists audit events oldest-first per record.
//
// Error Contract:
// - Append returns nil on success or a wrapped store error; never fails silently
// - ListByRecord returns the stored order (oldest-first); the Recorder reverses
// - Infrastructure failures surface as store_unavailable
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRecord(ctx context.Context, recordID string) ([]Event, error)
	CountByRecord(ctx context.Context, recordID string) (int, error)
}
