// Package keys defines the key provider boundary. The engine never manages
// key material itself; it asks a provider for the symmetric key covering one
// record and derives nothing beyond that call.
package keys

import (
	"context"
)

// Provider supplies the 256-bit field key for a record. Implementations may
// call out to an external KMS; failures to reach it must surface as
// store_unavailable so the lifecycle manager can retry.
type Provider interface {
	FieldKey(ctx context.Context, recordID string) ([]byte, error)
}
