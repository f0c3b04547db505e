package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/internal/consent/models"
	"custodia/internal/consent/store"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

type LedgerSuite struct {
	suite.Suite
	auditStore *audit.InMemoryStore
	ledger     *Ledger
	now        time.Time
}

func (s *LedgerSuite) SetupTest() {
	s.auditStore = audit.NewInMemoryStore()
	s.ledger = NewLedger(
		store.New(s.auditStore),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithFreshnessWindow(30*24*time.Hour),
	)
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

// ctx returns a context whose clock reports the suite's current time.
func (s *LedgerSuite) ctx() context.Context {
	return requestcontext.WithClock(context.Background(), func() time.Time { return s.now })
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) TestRecordAppendsConsentAndAudit() {
	record, err := s.ledger.Record(s.ctx(), "alice", models.TypeDataSharing, true, "signup flow")
	s.Require().NoError(err)
	s.True(record.Granted)
	s.Equal(s.now, record.Timestamp)

	events, err := s.auditStore.ListByRecord(context.Background(), "alice")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionConsentRecorded, events[0].Action)
	s.Equal("granted", events[0].Details["outcome"])
}

func (s *LedgerSuite) TestRecordValidation() {
	_, err := s.ledger.Record(s.ctx(), "", models.TypeDataSharing, true, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.ledger.Record(s.ctx(), "alice", "telepathy", true, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LedgerSuite) TestVerifyFreshnessLifecycle() {
	ctx := s.ctx()
	_, err := s.ledger.Record(ctx, "alice", models.TypeDataSharing, true, "")
	s.Require().NoError(err)

	s.Run("fresh immediately after grant", func() {
		fresh, err := s.ledger.Verify(s.ctx(), "alice", models.TypeDataSharing)
		s.Require().NoError(err)
		s.True(fresh)
	})

	s.Run("still fresh just inside the window", func() {
		s.now = s.now.Add(30*24*time.Hour - time.Minute)
		fresh, err := s.ledger.Verify(s.ctx(), "alice", models.TypeDataSharing)
		s.Require().NoError(err)
		s.True(fresh)
	})

	s.Run("stale once the window elapses with no new record", func() {
		s.now = s.now.Add(2 * time.Minute)
		fresh, err := s.ledger.Verify(s.ctx(), "alice", models.TypeDataSharing)
		s.Require().NoError(err)
		s.False(fresh)
	})
}

func (s *LedgerSuite) TestVerifyLatestRecordAuthoritative() {
	ctx := s.ctx()
	_, err := s.ledger.Record(ctx, "alice", models.TypeDataSharing, true, "")
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	_, err = s.ledger.Record(s.ctx(), "alice", models.TypeDataSharing, false, "changed my mind")
	s.Require().NoError(err)

	fresh, err := s.ledger.Verify(s.ctx(), "alice", models.TypeDataSharing)
	s.Require().NoError(err)
	s.False(fresh, "a newer revocation defeats an older grant")

	// Re-granting flips it back.
	s.now = s.now.Add(time.Hour)
	_, err = s.ledger.Record(s.ctx(), "alice", models.TypeDataSharing, true, "")
	s.Require().NoError(err)

	fresh, err = s.ledger.Verify(s.ctx(), "alice", models.TypeDataSharing)
	s.Require().NoError(err)
	s.True(fresh)
}

func (s *LedgerSuite) TestVerifyUnknownSubjectIsFalseNotError() {
	fresh, err := s.ledger.Verify(s.ctx(), "nobody", models.TypeDataSharing)
	s.Require().NoError(err)
	s.False(fresh)
}

func (s *LedgerSuite) TestVerifyTypesAreIndependent() {
	_, err := s.ledger.Record(s.ctx(), "alice", models.TypeDataSharing, true, "")
	s.Require().NoError(err)

	fresh, err := s.ledger.Verify(s.ctx(), "alice", models.TypeResearch)
	s.Require().NoError(err)
	s.False(fresh, "consent for one type must not unlock another")
}

func (s *LedgerSuite) TestRequire() {
	err := s.ledger.Require(s.ctx(), "alice", models.TypeThirdPartyAccess)
	s.True(dErrors.HasCode(err, dErrors.CodeConsentRequired))

	_, err = s.ledger.Record(s.ctx(), "alice", models.TypeThirdPartyAccess, true, "")
	s.Require().NoError(err)
	s.NoError(s.ledger.Require(s.ctx(), "alice", models.TypeThirdPartyAccess))
}

func (s *LedgerSuite) TestHistoryNewestFirstAndComplete() {
	for i, granted := range []bool{true, false, true} {
		s.now = s.now.Add(time.Duration(i) * time.Hour)
		_, err := s.ledger.Record(s.ctx(), "alice", models.TypeDataSharing, granted, "")
		s.Require().NoError(err)
	}

	records, err := s.ledger.History(s.ctx(), "alice", models.TypeDataSharing)
	s.Require().NoError(err)
	s.Require().Len(records, 3, "older records are retained for audit")
	s.True(records[0].Granted)
	s.False(records[1].Granted)
	s.True(records[0].Timestamp.After(records[1].Timestamp))
}

// failingAuditStore rejects every append.
type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit sink down")
}
func (failingAuditStore) ListByRecord(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}
func (failingAuditStore) CountByRecord(context.Context, string) (int, error) { return 0, nil }

func (s *LedgerSuite) TestRecordIsAtomicWithAudit() {
	ledger := NewLedger(store.New(failingAuditStore{}))

	_, err := ledger.Record(s.ctx(), "alice", models.TypeDataSharing, true, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStoreUnavailable))

	// Neither write is observable: the consent append was rolled back.
	fresh, err := ledger.Verify(s.ctx(), "alice", models.TypeDataSharing)
	s.Require().NoError(err)
	s.False(fresh)

	records, err := ledger.History(s.ctx(), "alice", models.TypeDataSharing)
	s.Require().NoError(err)
	s.Empty(records)
}
