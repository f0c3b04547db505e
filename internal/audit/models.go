package audit

import (
	"time"

	dErrors "custodia/pkg/domain-errors"
)

// Action is the closed set of auditable actions. Anything outside this set is
// rejected at append time; the log must stay queryable by a stable vocabulary
// for the full retention period.
type Action string

const (
	ActionCreate          Action = "create"
	ActionRead            Action = "read"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionShare           Action = "share"
	ActionAccessGranted   Action = "access_granted"
	ActionAccessRevoked   Action = "access_revoked"
	ActionPurchase        Action = "purchase"
	ActionAccessAttempt   Action = "access_attempt"
	ActionAccessDenied    Action = "access_denied"
	ActionConsentRecorded Action = "consent_recorded"
)

// validActions is the single source of truth for the action vocabulary.
var validActions = map[Action]bool{
	ActionCreate:          true,
	ActionRead:            true,
	ActionUpdate:          true,
	ActionDelete:          true,
	ActionShare:           true,
	ActionAccessGranted:   true,
	ActionAccessRevoked:   true,
	ActionPurchase:        true,
	ActionAccessAttempt:   true,
	ActionAccessDenied:    true,
	ActionConsentRecorded: true,
}

// IsValid checks if the action is one of the supported enum values.
func (a Action) IsValid() bool {
	return validActions[a]
}

// Event is one immutable audit entry. Once appended it is never edited or
// removed before retention expiry.
type Event struct {
	ID          string
	RecordID    string
	Action      Action
	PerformedBy string
	Timestamp   time.Time
	IPAddress   string
	UserAgent   string
	Details     map[string]string
}

// Validate enforces the event invariants before persistence.
func (e Event) Validate() error {
	if e.RecordID == "" {
		return dErrors.New(dErrors.CodeValidation, "audit event requires a record ID")
	}
	if !e.Action.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown audit action")
	}
	if e.PerformedBy == "" {
		return dErrors.New(dErrors.CodeValidation, "audit event requires an actor")
	}
	if e.Timestamp.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "audit event requires a timestamp")
	}
	return nil
}

// Filter narrows audit reads. Zero values mean "no constraint".
type Filter struct {
	Action      Action
	PerformedBy string
	Since       time.Time
	Until       time.Time
	Limit       int
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.PerformedBy != "" && e.PerformedBy != f.PerformedBy {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
