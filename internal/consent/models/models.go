package models

import (
	"time"

	dErrors "custodia/pkg/domain-errors"
)

// Type labels what a subject consented to. Type binding allows selective
// revocation without affecting other flows.
type Type string

const (
	TypeDataSharing      Type = "data_sharing"
	TypeTreatment        Type = "treatment"
	TypeResearch         Type = "research"
	TypeThirdPartyAccess Type = "third_party_access"
)

// ValidTypes is the single source of truth for all valid consent types.
var ValidTypes = map[Type]bool{
	TypeDataSharing:      true,
	TypeTreatment:        true,
	TypeResearch:         true,
	TypeThirdPartyAccess: true,
}

// IsValid checks if the consent type is one of the supported enum values.
func (t Type) IsValid() bool {
	return ValidTypes[t]
}

// Record captures one consent decision. Records are append-only: a new
// decision supersedes rather than overwrites prior ones, and for a given
// (subject, type) the most recent record by timestamp is authoritative.
// Older records are retained for audit but never consulted for authorization.
type Record struct {
	ID        string
	Subject   string
	Type      Type
	Granted   bool
	Timestamp time.Time
	Context   string
}

// NewRecord creates a Record with domain invariant checks.
func NewRecord(id, subject string, ctype Type, granted bool, timestamp time.Time, context string) (*Record, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent ID required")
	}
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject ID required")
	}
	if !ctype.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid consent type")
	}
	if timestamp.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent timestamp required")
	}
	return &Record{
		ID:        id,
		Subject:   subject,
		Type:      ctype,
		Granted:   granted,
		Timestamp: timestamp,
		Context:   context,
	}, nil
}

// IsFresh reports whether this record authorizes anything at the given time.
// Only a granted record within the freshness window counts; a once-granted
// consent goes stale without any new record being written.
func (r Record) IsFresh(now time.Time, window time.Duration) bool {
	if !r.Granted {
		return false
	}
	return now.Sub(r.Timestamp) <= window
}
