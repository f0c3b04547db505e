// Package blob is the boundary to the external content store. The engine
// never keeps raw content bytes on a record: it hands ciphertext to a blob
// store, keeps the returned locator, and independently computes the content
// hash before the bytes leave the process.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	dErrors "custodia/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "content not found")

// Store accepts opaque content bytes and returns a retrieval locator. The
// caller is expected to pass ciphertext; this boundary applies no protection
// of its own.
type Store interface {
	Put(ctx context.Context, content []byte) (locator string, err error)
	Get(ctx context.Context, locator string) ([]byte, error)
}

// ContentHash is the digest the engine records alongside a locator. It is
// computed before Put so a store returning different bytes is detectable.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
