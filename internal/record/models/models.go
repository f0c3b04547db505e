package models

import (
	"strings"
	"time"

	"custodia/internal/crypto/fieldcipher"
	"custodia/internal/crypto/integrity"
	dErrors "custodia/pkg/domain-errors"
)

// Operation is the closed set of grantable operations. Matching is exact:
// admin does not implicitly satisfy read or write requests, each operation is
// granted independently.
type Operation string

const (
	OperationRead  Operation = "read"
	OperationWrite Operation = "write"
	OperationAdmin Operation = "admin"
)

// IsValid checks if the operation is one of the supported enum values.
func (o Operation) IsValid() bool {
	return o == OperationRead || o == OperationWrite || o == OperationAdmin
}

// NormalizeIdentity canonicalizes identity strings so owner and grantee
// comparisons are case-insensitive.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AccessGrant authorizes one grantee to perform one operation, optionally
// time-bounded. Grants are never mutated in place: revocation removes the
// grant in the same transaction as its access_revoked audit event.
type AccessGrant struct {
	Grantee         string
	Operation       Operation
	GrantedAt       time.Time
	ExpiresAt       *time.Time
	Purpose         string
	ConsentObtained bool
}

// Expired reports whether the grant's time bound has passed.
func (g AccessGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

// Retention describes how long a record's audit trail must survive and when
// scheduled deletion may purge protected content.
type Retention struct {
	Period            time.Duration
	ExpiresAt         time.Time
	DeletionScheduled bool
}

// PurgeDue reports whether scheduled deletion may purge protected content.
func (r Retention) PurgeDue(now time.Time) bool {
	return r.DeletionScheduled && !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Record is the unit of protection. Mutations go through the lifecycle
// service only; external callers never touch fields directly, and the
// integrity hash moves atomically with protected content and metadata.
type Record struct {
	ID             string
	Owner          string
	Protected      map[string]fieldcipher.Envelope
	Grants         []AccessGrant
	IntegrityHash  integrity.Digest
	StableMetadata map[string]string
	Retention      Retention
	// ContentLocator points at externally stored blob content; ContentHash is
	// the digest this engine computed before handing bytes to the blob store.
	ContentLocator string
	ContentHash    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        uint64
}

// New creates a Record with domain invariant checks. A record exists only
// once the owner writes at least one protected field; the caller encrypts
// before constructing.
func New(id, owner string, now time.Time) (*Record, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record ID required")
	}
	owner = NormalizeIdentity(owner)
	if owner == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record owner required")
	}
	return &Record{
		ID:             id,
		Owner:          owner,
		Protected:      make(map[string]fieldcipher.Envelope),
		StableMetadata: make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsOwner reports whether the identity is the record owner.
func (r *Record) IsOwner(identity string) bool {
	return r.Owner == NormalizeIdentity(identity)
}

// RecomputeHash refreshes the integrity hash from current content. Call this
// inside the same transaction as any protected-field or metadata mutation.
func (r *Record) RecomputeHash() {
	r.IntegrityHash = integrity.Compute(r.Protected, r.StableMetadata, r.Owner)
}

// VerifyIntegrity reports whether stored content still matches the stored
// hash. False means tampered: deny reads, only owner re-issuance clears it.
func (r *Record) VerifyIntegrity() bool {
	return integrity.Verify(r.IntegrityHash, integrity.Compute(r.Protected, r.StableMetadata, r.Owner))
}

// Clone returns a deep copy so store snapshots cannot alias caller state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Protected = make(map[string]fieldcipher.Envelope, len(r.Protected))
	for k, v := range r.Protected {
		out.Protected[k] = fieldcipher.Envelope{
			Ciphertext: append([]byte{}, v.Ciphertext...),
			Nonce:      append([]byte{}, v.Nonce...),
			Tag:        append([]byte{}, v.Tag...),
		}
	}
	out.StableMetadata = make(map[string]string, len(r.StableMetadata))
	for k, v := range r.StableMetadata {
		out.StableMetadata[k] = v
	}
	out.Grants = make([]AccessGrant, len(r.Grants))
	copy(out.Grants, r.Grants)
	for i, g := range r.Grants {
		if g.ExpiresAt != nil {
			expiry := *g.ExpiresAt
			out.Grants[i].ExpiresAt = &expiry
		}
	}
	return &out
}
