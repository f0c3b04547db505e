package keys

import (
	"context"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"custodia/internal/crypto/fieldcipher"
	dErrors "custodia/pkg/domain-errors"
)

// StaticProvider derives per-record field keys from a single master key via
// HKDF-SHA256. Compromise of one derived key does not expose siblings, and
// rotating the master key invalidates every derived key at once.
type StaticProvider struct {
	master []byte
	info   []byte
}

// NewStaticProvider validates the master key and returns a provider.
func NewStaticProvider(master []byte) (*StaticProvider, error) {
	if len(master) != fieldcipher.KeySize {
		return nil, dErrors.New(dErrors.CodeValidation, "master key must be 256 bits")
	}
	return &StaticProvider{
		master: append([]byte{}, master...),
		info:   []byte("custodia/field-key/v1"),
	}, nil
}

// FieldKey derives the record's field key. The record ID is the HKDF salt so
// distinct records always receive distinct keys.
func (p *StaticProvider) FieldKey(_ context.Context, recordID string) ([]byte, error) {
	if recordID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "record ID required for key derivation")
	}
	r := hkdf.New(sha256.New, p.master, []byte(recordID), p.info)
	key := make([]byte, fieldcipher.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not derive field key")
	}
	return key, nil
}
