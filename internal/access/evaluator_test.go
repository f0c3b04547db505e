package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/record/models"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testRecord(t *testing.T, grants ...models.AccessGrant) *models.Record {
	t.Helper()
	rec, err := models.New("rec-1", "Owner@Example.com", now.Add(-24*time.Hour))
	require.NoError(t, err)
	rec.Grants = grants
	return rec
}

func grantFor(grantee string, op models.Operation, consent bool) models.AccessGrant {
	return models.AccessGrant{
		Grantee:         grantee,
		Operation:       op,
		GrantedAt:       now.Add(-time.Hour),
		Purpose:         "treatment",
		ConsentObtained: consent,
	}
}

func TestEvaluate_OwnerShortCircuits(t *testing.T) {
	rec := testRecord(t)

	for _, op := range []models.Operation{models.OperationRead, models.OperationWrite, models.OperationAdmin} {
		d := Evaluate(rec, Request{Requester: "owner@example.com", Operation: op, TargetsProtected: true}, now)
		assert.True(t, d.Allowed(), "owner must be allowed %s", op)
		assert.Equal(t, ReasonOwner, d.Reason)
	}

	// Ownership comparison is case-insensitive.
	d := Evaluate(rec, Request{Requester: "OWNER@example.COM", Operation: models.OperationRead}, now)
	assert.True(t, d.Allowed())
}

func TestEvaluate_GrantMatching(t *testing.T) {
	rec := testRecord(t, grantFor("bob", models.OperationRead, true))

	t.Run("matching grant with consent allows protected read", func(t *testing.T) {
		d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationRead, TargetsProtected: true}, now)
		assert.True(t, d.Allowed())
		assert.Equal(t, ReasonGrantMatched, d.Reason)
		require.NotNil(t, d.MatchedGrant)
		assert.Equal(t, "bob", d.MatchedGrant.Grantee)
	})

	t.Run("no grant for requester denies", func(t *testing.T) {
		d := Evaluate(rec, Request{Requester: "carol", Operation: models.OperationRead}, now)
		assert.False(t, d.Allowed())
		assert.Equal(t, ReasonNoMatchingGrant, d.Reason)
	})

	t.Run("operation matching is exact", func(t *testing.T) {
		d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationWrite}, now)
		assert.False(t, d.Allowed())
		assert.Equal(t, ReasonNoMatchingGrant, d.Reason)
	})
}

func TestEvaluate_AdminDoesNotImplyReadOrWrite(t *testing.T) {
	rec := testRecord(t, grantFor("bob", models.OperationAdmin, true))

	for _, op := range []models.Operation{models.OperationRead, models.OperationWrite} {
		d := Evaluate(rec, Request{Requester: "bob", Operation: op}, now)
		assert.False(t, d.Allowed(), "admin grant must not satisfy %s", op)
	}

	d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationAdmin}, now)
	assert.True(t, d.Allowed())
}

func TestEvaluate_ConsentGate(t *testing.T) {
	rec := testRecord(t, grantFor("bob", models.OperationRead, false))

	t.Run("metadata read allowed without consent", func(t *testing.T) {
		d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationRead, TargetsProtected: false}, now)
		assert.True(t, d.Allowed())
	})

	t.Run("protected read denied without consent", func(t *testing.T) {
		d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationRead, TargetsProtected: true}, now)
		assert.False(t, d.Allowed())
		assert.Equal(t, ReasonConsentMissing, d.Reason)
		assert.NotNil(t, d.MatchedGrant, "the nominally matching entry is reported")
	})
}

func TestEvaluate_Expiry(t *testing.T) {
	expired := grantFor("bob", models.OperationRead, true)
	past := now.Add(-time.Minute)
	expired.ExpiresAt = &past
	rec := testRecord(t, expired)

	d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationRead, TargetsProtected: true}, now)
	assert.False(t, d.Allowed(), "expired grant denies regardless of prior consent")
	assert.Equal(t, ReasonGrantExpired, d.Reason)

	t.Run("future expiry still allows", func(t *testing.T) {
		future := now.Add(time.Hour)
		active := grantFor("bob", models.OperationRead, true)
		active.ExpiresAt = &future
		rec := testRecord(t, active)

		d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationRead, TargetsProtected: true}, now)
		assert.True(t, d.Allowed())
	})
}

func TestEvaluate_LatestGrantWinsTieBreak(t *testing.T) {
	older := grantFor("bob", models.OperationRead, true)
	older.GrantedAt = now.Add(-2 * time.Hour)

	newer := grantFor("bob", models.OperationRead, false)
	newer.GrantedAt = now.Add(-time.Minute)

	rec := testRecord(t, older, newer)

	// The newest explicit grant is authoritative even when an older, more
	// permissive entry also matches.
	d := Evaluate(rec, Request{Requester: "bob", Operation: models.OperationRead, TargetsProtected: true}, now)
	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonConsentMissing, d.Reason)
	require.NotNil(t, d.MatchedGrant)
	assert.Equal(t, newer.GrantedAt, d.MatchedGrant.GrantedAt)
}

func TestEvaluate_Pure(t *testing.T) {
	rec := testRecord(t, grantFor("bob", models.OperationRead, true))
	before := len(rec.Grants)

	_ = Evaluate(rec, Request{Requester: "bob", Operation: models.OperationRead}, now)
	_ = Evaluate(rec, Request{Requester: "carol", Operation: models.OperationWrite}, now)

	assert.Len(t, rec.Grants, before, "evaluation must not mutate the record")
}
