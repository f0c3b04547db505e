// Package access holds the pure access decision procedure. It inspects a
// record's ownership and grant list and returns a decision; it performs no
// I/O and appends nothing. The lifecycle service records the mandatory
// access_attempt event for every evaluation, allowed or denied.
package access

import (
	"time"

	"custodia/internal/record/models"
)

// Outcome enumerates the possible evaluation results.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
)

// Reason encodes why the evaluation resolved the way it did.
type Reason string

const (
	ReasonOwner           Reason = "owner"
	ReasonGrantMatched    Reason = "grant_matched"
	ReasonNoMatchingGrant Reason = "no_matching_grant"
	ReasonGrantExpired    Reason = "grant_expired"
	ReasonConsentMissing  Reason = "consent_missing"
)

// Request is one evaluation input. TargetsProtected marks operations that
// touch encrypted field content rather than plain metadata; a grant without
// obtained consent only ever covers metadata.
type Request struct {
	Requester        string
	Operation        models.Operation
	TargetsProtected bool
	Purpose          string
}

// Decision is the evaluation output. MatchedGrant is set when a grant
// produced the outcome, including consent denials, so callers can report
// which entry was considered.
type Decision struct {
	Outcome      Outcome
	Reason       Reason
	MatchedGrant *models.AccessGrant
	EvaluatedAt  time.Time
}

// Allowed reports whether the decision grants the operation.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

// Evaluate runs the decision chain:
//  1. Ownership short-circuits: the owner is allowed every operation.
//  2. Grant scan: exact grantee and operation match, not expired. When
//     several entries match, the one with the latest GrantedAt wins.
//  3. Consent gate: protected-field operations additionally require the
//     winning grant to carry obtained consent; a metadata-only grant never
//     unlocks protected content.
func Evaluate(rec *models.Record, req Request, now time.Time) Decision {
	requester := models.NormalizeIdentity(req.Requester)

	if rec.IsOwner(requester) {
		return Decision{Outcome: OutcomeAllowed, Reason: ReasonOwner, EvaluatedAt: now}
	}

	var winner *models.AccessGrant
	sawExpired := false
	for i := range rec.Grants {
		g := &rec.Grants[i]
		if models.NormalizeIdentity(g.Grantee) != requester || g.Operation != req.Operation {
			continue
		}
		if g.Expired(now) {
			sawExpired = true
			continue
		}
		if winner == nil || g.GrantedAt.After(winner.GrantedAt) {
			winner = g
		}
	}

	if winner == nil {
		reason := ReasonNoMatchingGrant
		if sawExpired {
			reason = ReasonGrantExpired
		}
		return Decision{Outcome: OutcomeDenied, Reason: reason, EvaluatedAt: now}
	}

	matched := *winner
	if req.TargetsProtected && !matched.ConsentObtained {
		return Decision{
			Outcome:      OutcomeDenied,
			Reason:       ReasonConsentMissing,
			MatchedGrant: &matched,
			EvaluatedAt:  now,
		}
	}

	return Decision{
		Outcome:      OutcomeAllowed,
		Reason:       ReasonGrantMatched,
		MatchedGrant: &matched,
		EvaluatedAt:  now,
	}
}
