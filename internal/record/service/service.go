// Package service implements the record lifecycle manager. It is the only
// component that mutates records: every operation runs inside a per-record
// transaction so protected fields, the grant list, the integrity hash, and
// the matching audit events move together or not at all.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"custodia/internal/access"
	"custodia/internal/audit"
	"custodia/internal/blob"
	consentmodels "custodia/internal/consent/models"
	"custodia/internal/crypto/fieldcipher"
	"custodia/internal/keys"
	"custodia/internal/record/metrics"
	"custodia/internal/record/models"
	"custodia/internal/record/store"
	"custodia/internal/record/tracer"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// defaultRetentionPeriod is how long audit trails and scheduled-deletion
// records survive before the sweeper may purge protected content.
const defaultRetentionPeriod = 6 * 365 * 24 * time.Hour

// ConsentVerifier is the slice of the consent ledger the lifecycle manager
// needs: a hard gate that fails with consent_required when the subject holds
// no fresh grant.
type ConsentVerifier interface {
	Require(ctx context.Context, subject string, ctype consentmodels.Type) error
}

// Service is the record lifecycle manager.
type Service struct {
	tx        RecordTx
	audit     *audit.Recorder
	consents  ConsentVerifier
	keys      keys.Provider
	blobs     blob.Store
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
	backoff   BackoffConfig
	retention time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Log lines carry identities and record IDs,
// never plaintext or ciphertext material.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer for lifecycle spans.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithBackoff overrides retry behavior for retryable store errors.
func WithBackoff(b BackoffConfig) Option {
	return func(s *Service) {
		s.backoff = b
	}
}

// WithBlobStore attaches the external content store. Without it, the
// content operations reject with validation_failed.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) {
		s.blobs = b
	}
}

// WithRetentionPeriod overrides the retention period applied when deletion
// is scheduled.
func WithRetentionPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// New constructs the lifecycle manager.
func New(tx RecordTx, auditRec *audit.Recorder, consents ConsentVerifier, keyProvider keys.Provider, opts ...Option) *Service {
	s := &Service{
		tx:        tx,
		audit:     auditRec,
		consents:  consents,
		keys:      keyProvider,
		tracer:    tracer.NewNoop(),
		retention: defaultRetentionPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backoff = s.backoff.withDefaults()
	return s
}

// CreateOrUpdate seals the given field values into the record, creating it on
// first write. Changed fields are re-encrypted with fresh nonces, metadata is
// merged, the integrity hash is recomputed, and a create or update event is
// appended, all under the record's write lock.
func (s *Service) CreateOrUpdate(ctx context.Context, recordID, actor string, fieldValues map[string][]byte, meta map[string]string) (rec *models.Record, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordWrite,
		tracer.String(tracer.AttrRecordID, recordID),
		tracer.Int64(tracer.AttrFieldCount, int64(len(fieldValues))),
	)
	defer func() { span.End(err) }()

	if recordID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "record ID required")
	}
	actor = models.NormalizeIdentity(actor)
	if actor == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "actor identity required")
	}
	if len(fieldValues) == 0 && len(meta) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "nothing to write")
	}
	for field := range fieldValues {
		if field == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "field name required")
		}
	}

	start := time.Now()
	now := requestcontext.Now(ctx)

	key, err := s.keys.FieldKey(ctx, recordID)
	if err != nil {
		s.countOp("write", "error")
		return nil, err
	}

	txErr := s.tx.RunInTx(ctx, recordID, func(st store.Store) error {
		var prior *models.Record
		current, getErr := s.getWithRetry(ctx, st, recordID)
		switch {
		case getErr == nil:
			prior = current.Clone()
		case errors.Is(getErr, store.ErrNotFound):
			current, getErr = models.New(recordID, actor, now)
			if getErr != nil {
				return getErr
			}
		default:
			return getErr
		}

		action := audit.ActionCreate
		if prior != nil {
			action = audit.ActionUpdate
			if !current.IsOwner(actor) {
				decision := access.Evaluate(current, access.Request{
					Requester:        actor,
					Operation:        models.OperationWrite,
					TargetsProtected: len(fieldValues) > 0,
				}, now)
				s.countDecision(decision)
				if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessAttempt, actor, map[string]string{
					"operation": string(models.OperationWrite),
					"outcome":   string(decision.Outcome),
				}); auditErr != nil {
					return auditErr
				}
				if !decision.Allowed() {
					if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, actor, map[string]string{
						"operation": string(models.OperationWrite),
						"reason":    string(decision.Reason),
					}); auditErr != nil {
						return auditErr
					}
					return dErrors.New(dErrors.CodeForbidden, "access denied")
				}
			}
		}

		for field, plaintext := range fieldValues {
			env, encErr := fieldcipher.Encrypt(plaintext, key, recordID, field)
			if encErr != nil {
				return encErr
			}
			current.Protected[field] = env
		}
		for k, v := range meta {
			current.StableMetadata[k] = v
		}
		current.RecomputeHash()
		current.UpdatedAt = now
		current.Version++

		if saveErr := s.saveWithRetry(ctx, st, current); saveErr != nil {
			return saveErr
		}

		if _, auditErr := s.appendEvent(ctx, recordID, action, actor, map[string]string{
			"operation": "write",
			"outcome":   "success",
		}); auditErr != nil {
			s.unwind(ctx, st, recordID, prior)
			return auditErr
		}

		if s.metrics != nil {
			s.metrics.AddFieldsEncrypted(len(fieldValues))
		}
		rec = current.Clone()
		return nil
	})
	if txErr != nil {
		s.countOp("write", "error")
		return nil, txErr
	}

	s.observe("write", start)
	s.countOp("write", "success")
	s.log(ctx, slog.LevelInfo, "record written",
		"record_id", recordID,
		"actor", actor,
		"version", rec.Version,
	)
	return rec, nil
}

// Read evaluates access, verifies integrity, and decrypts the requested
// protected fields. Every evaluation appends exactly one access_attempt
// event; denials additionally append access_denied before the error
// surfaces. An empty fields slice reads every protected field.
func (s *Service) Read(ctx context.Context, recordID, requester string, fields []string, purpose string) (values map[string][]byte, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordRead,
		tracer.String(tracer.AttrRecordID, recordID),
	)
	defer func() { span.End(err) }()

	requester = models.NormalizeIdentity(requester)
	if requester == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requester identity required")
	}

	start := time.Now()
	now := requestcontext.Now(ctx)

	txErr := s.tx.RunInReadTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}

		decision := access.Evaluate(rec, access.Request{
			Requester:        requester,
			Operation:        models.OperationRead,
			TargetsProtected: true,
			Purpose:          purpose,
		}, now)
		s.countDecision(decision)
		span.SetAttributes(
			tracer.String(tracer.AttrDecision, string(decision.Outcome)),
			tracer.String(tracer.AttrReason, string(decision.Reason)),
		)

		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessAttempt, requester, map[string]string{
			"operation": string(models.OperationRead),
			"purpose":   purpose,
			"outcome":   string(decision.Outcome),
		}); auditErr != nil {
			return auditErr
		}

		if !decision.Allowed() {
			if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, requester, map[string]string{
				"operation": string(models.OperationRead),
				"reason":    string(decision.Reason),
			}); auditErr != nil {
				return auditErr
			}
			return dErrors.New(dErrors.CodeForbidden, "access denied")
		}

		// Integrity gates decryption: a tampered record is never decrypted,
		// not even for its owner.
		if !rec.VerifyIntegrity() {
			if s.metrics != nil {
				s.metrics.IncrementIntegrityFailures()
			}
			span.AddEvent(tracer.EventIntegrityFailed)
			if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, requester, map[string]string{
				"operation": string(models.OperationRead),
				"reason":    "integrity_mismatch",
			}); auditErr != nil {
				return auditErr
			}
			return dErrors.New(dErrors.CodeIntegrityMismatch, "record integrity verification failed")
		}

		if len(fields) == 0 {
			fields = make([]string, 0, len(rec.Protected))
			for name := range rec.Protected {
				fields = append(fields, name)
			}
		}

		key, keyErr := s.keys.FieldKey(ctx, recordID)
		if keyErr != nil {
			return keyErr
		}

		out := make(map[string][]byte, len(fields))
		for _, field := range fields {
			env, ok := rec.Protected[field]
			if !ok {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown field: %s", field))
			}
			plaintext, decErr := fieldcipher.Decrypt(env, key, recordID, field)
			if decErr != nil {
				if s.metrics != nil {
					s.metrics.IncrementDecryptionFailures()
				}
				if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, requester, map[string]string{
					"operation": string(models.OperationRead),
					"reason":    "decryption_failed",
				}); auditErr != nil {
					return auditErr
				}
				return decErr
			}
			out[field] = plaintext
		}

		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionRead, requester, map[string]string{
			"operation": string(models.OperationRead),
			"purpose":   purpose,
			"outcome":   "success",
		}); auditErr != nil {
			return auditErr
		}

		values = out
		return nil
	})
	if txErr != nil {
		s.countOp("read", outcomeLabel(txErr))
		return nil, txErr
	}

	s.observe("read", start)
	s.countOp("read", "success")
	return values, nil
}

// GrantAccess adds a grant for one grantee and operation. The caller must be
// the owner or hold an admin grant, and the record owner must hold fresh
// data-sharing consent in the ledger before the grant can unlock protected
// content. The grant and its access_granted event commit together.
func (s *Service) GrantAccess(ctx context.Context, recordID, caller, grantee string, op models.Operation, ttl *time.Duration, purpose string) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordGrant,
		tracer.String(tracer.AttrRecordID, recordID),
		tracer.String(tracer.AttrOperation, string(op)),
	)
	defer func() { span.End(err) }()

	caller = models.NormalizeIdentity(caller)
	grantee = models.NormalizeIdentity(grantee)
	if grantee == "" {
		return dErrors.New(dErrors.CodeValidation, "grantee identity required")
	}
	if !op.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid operation: %s", op))
	}
	if ttl != nil && *ttl <= 0 {
		return dErrors.New(dErrors.CodeValidation, "grant ttl must be positive")
	}

	start := time.Now()
	now := requestcontext.Now(ctx)

	txErr := s.tx.RunInTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}
		if adminErr := s.requireOwnerOrAdmin(ctx, rec, caller, now); adminErr != nil {
			return adminErr
		}

		// Grants covering protected content need a live consent decision from
		// the record owner, not a flag the caller asserts.
		if consentErr := s.consents.Require(ctx, rec.Owner, consentmodels.TypeDataSharing); consentErr != nil {
			return consentErr
		}

		prior := rec.Clone()
		grant := models.AccessGrant{
			Grantee:         grantee,
			Operation:       op,
			GrantedAt:       now,
			Purpose:         purpose,
			ConsentObtained: true,
		}
		if ttl != nil {
			expiry := now.Add(*ttl)
			grant.ExpiresAt = &expiry
		}
		rec.Grants = append(rec.Grants, grant)

		if saveErr := s.saveWithRetry(ctx, st, rec); saveErr != nil {
			return saveErr
		}
		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessGranted, caller, map[string]string{
			"grantee":   grantee,
			"operation": string(op),
			"purpose":   purpose,
		}); auditErr != nil {
			s.unwind(ctx, st, recordID, prior)
			return auditErr
		}
		return nil
	})
	if txErr != nil {
		s.countOp("grant", outcomeLabel(txErr))
		return txErr
	}

	s.observe("grant", start)
	s.countOp("grant", "success")
	s.log(ctx, slog.LevelInfo, "access granted",
		"record_id", recordID,
		"grantee", grantee,
		"operation", op,
	)
	return nil
}

// RevokeAccess removes every grant matching (grantee, operation). Revoking a
// grant that does not exist succeeds without appending anything; when grants
// are removed, the removal and its access_revoked event commit together.
func (s *Service) RevokeAccess(ctx context.Context, recordID, caller, grantee string, op models.Operation) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordRevoke,
		tracer.String(tracer.AttrRecordID, recordID),
		tracer.String(tracer.AttrOperation, string(op)),
	)
	defer func() { span.End(err) }()

	caller = models.NormalizeIdentity(caller)
	grantee = models.NormalizeIdentity(grantee)

	start := time.Now()
	now := requestcontext.Now(ctx)

	txErr := s.tx.RunInTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}
		if adminErr := s.requireOwnerOrAdmin(ctx, rec, caller, now); adminErr != nil {
			return adminErr
		}

		prior := rec.Clone()
		kept := rec.Grants[:0]
		removed := 0
		for _, g := range rec.Grants {
			if models.NormalizeIdentity(g.Grantee) == grantee && g.Operation == op {
				removed++
				continue
			}
			kept = append(kept, g)
		}
		if removed == 0 {
			return nil
		}
		rec.Grants = kept

		if saveErr := s.saveWithRetry(ctx, st, rec); saveErr != nil {
			return saveErr
		}
		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessRevoked, caller, map[string]string{
			"grantee":   grantee,
			"operation": string(op),
		}); auditErr != nil {
			s.unwind(ctx, st, recordID, prior)
			return auditErr
		}
		return nil
	})
	if txErr != nil {
		s.countOp("revoke", outcomeLabel(txErr))
		return txErr
	}

	s.observe("revoke", start)
	s.countOp("revoke", "success")
	return nil
}

// RecordPurchase attaches a settlement reference and, optionally, a content
// locator to the record and appends a purchase event. The reference is an
// opaque external identifier; this engine settles nothing.
func (s *Service) RecordPurchase(ctx context.Context, recordID, caller, txRef, locator string) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordPayment,
		tracer.String(tracer.AttrRecordID, recordID),
	)
	defer func() { span.End(err) }()

	caller = models.NormalizeIdentity(caller)
	if txRef == "" {
		return dErrors.New(dErrors.CodeValidation, "transaction reference required")
	}

	start := time.Now()
	now := requestcontext.Now(ctx)

	txErr := s.tx.RunInTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}
		if adminErr := s.requireOwnerOrAdmin(ctx, rec, caller, now); adminErr != nil {
			return adminErr
		}

		prior := rec.Clone()
		if locator != "" {
			rec.ContentLocator = locator
		}
		rec.UpdatedAt = now
		rec.Version++

		if saveErr := s.saveWithRetry(ctx, st, rec); saveErr != nil {
			return saveErr
		}
		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionPurchase, caller, map[string]string{
			"transaction_ref": txRef,
			"outcome":         "recorded",
		}); auditErr != nil {
			s.unwind(ctx, st, recordID, prior)
			return auditErr
		}
		return nil
	})
	if txErr != nil {
		s.countOp("purchase", outcomeLabel(txErr))
		return txErr
	}

	s.observe("purchase", start)
	s.countOp("purchase", "success")
	return nil
}

// AttachContent hands already-sealed content bytes to the blob store and
// records the returned locator together with the hash this engine computed
// before the bytes left the process. Owner or write-grant holders only.
func (s *Service) AttachContent(ctx context.Context, recordID, caller string, content []byte) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordWrite,
		tracer.String(tracer.AttrRecordID, recordID),
	)
	defer func() { span.End(err) }()

	if s.blobs == nil {
		return dErrors.New(dErrors.CodeValidation, "no content store configured")
	}
	caller = models.NormalizeIdentity(caller)
	if len(content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "content required")
	}

	now := requestcontext.Now(ctx)
	contentHash := blob.ContentHash(content)

	locator, putErr := s.blobs.Put(ctx, content)
	if putErr != nil {
		return putErr
	}

	txErr := s.tx.RunInTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}
		if !rec.IsOwner(caller) {
			decision := access.Evaluate(rec, access.Request{
				Requester:        caller,
				Operation:        models.OperationWrite,
				TargetsProtected: true,
			}, now)
			s.countDecision(decision)
			if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessAttempt, caller, map[string]string{
				"operation": string(models.OperationWrite),
				"outcome":   string(decision.Outcome),
			}); auditErr != nil {
				return auditErr
			}
			if !decision.Allowed() {
				if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, caller, map[string]string{
					"operation": string(models.OperationWrite),
					"reason":    string(decision.Reason),
				}); auditErr != nil {
					return auditErr
				}
				return dErrors.New(dErrors.CodeForbidden, "access denied")
			}
		}

		prior := rec.Clone()
		rec.ContentLocator = locator
		rec.ContentHash = contentHash
		rec.UpdatedAt = now
		rec.Version++

		if saveErr := s.saveWithRetry(ctx, st, rec); saveErr != nil {
			return saveErr
		}
		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionUpdate, caller, map[string]string{
			"operation": "attach_content",
			"outcome":   "success",
		}); auditErr != nil {
			s.unwind(ctx, st, recordID, prior)
			return auditErr
		}
		return nil
	})
	if txErr != nil {
		s.countOp("attach_content", outcomeLabel(txErr))
		return txErr
	}
	s.countOp("attach_content", "success")
	return nil
}

// RetrieveContent evaluates read access, fetches the record's content from
// the blob store, and verifies the bytes against the hash recorded at attach
// time. A hash mismatch means the store returned different bytes: fail
// closed, same as record tampering.
func (s *Service) RetrieveContent(ctx context.Context, recordID, requester, purpose string) (content []byte, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordRead,
		tracer.String(tracer.AttrRecordID, recordID),
	)
	defer func() { span.End(err) }()

	if s.blobs == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "no content store configured")
	}
	requester = models.NormalizeIdentity(requester)
	now := requestcontext.Now(ctx)

	var locator, wantHash string
	txErr := s.tx.RunInReadTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}

		decision := access.Evaluate(rec, access.Request{
			Requester:        requester,
			Operation:        models.OperationRead,
			TargetsProtected: true,
			Purpose:          purpose,
		}, now)
		s.countDecision(decision)

		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessAttempt, requester, map[string]string{
			"operation": string(models.OperationRead),
			"purpose":   purpose,
			"outcome":   string(decision.Outcome),
		}); auditErr != nil {
			return auditErr
		}
		if !decision.Allowed() {
			if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, requester, map[string]string{
				"operation": string(models.OperationRead),
				"reason":    string(decision.Reason),
			}); auditErr != nil {
				return auditErr
			}
			return dErrors.New(dErrors.CodeForbidden, "access denied")
		}
		if rec.ContentLocator == "" {
			return dErrors.New(dErrors.CodeNotFound, "record has no attached content")
		}
		locator, wantHash = rec.ContentLocator, rec.ContentHash
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	content, getErr := s.blobs.Get(ctx, locator)
	if getErr != nil {
		return nil, getErr
	}

	// The blob fetch runs outside the record lock; verification and its
	// audit event re-enter it so the outcome and the event commit together.
	txErr = s.tx.RunInReadTx(ctx, recordID, func(store.Store) error {
		if blob.ContentHash(content) != wantHash {
			if s.metrics != nil {
				s.metrics.IncrementIntegrityFailures()
			}
			span.AddEvent(tracer.EventIntegrityFailed)
			if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, requester, map[string]string{
				"operation": string(models.OperationRead),
				"reason":    "integrity_mismatch",
			}); auditErr != nil {
				return auditErr
			}
			return dErrors.New(dErrors.CodeIntegrityMismatch, "content integrity verification failed")
		}

		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionShare, requester, map[string]string{
			"operation": "retrieve_content",
			"purpose":   purpose,
			"outcome":   "success",
		}); auditErr != nil {
			return auditErr
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return content, nil
}

// ScheduleDeletion marks the record for purge once the retention period
// elapses. Only the owner may schedule deletion. The audit trail survives the
// purge; only protected content is cleared, and that by the sweeper.
func (s *Service) ScheduleDeletion(ctx context.Context, recordID, caller string) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordPurge,
		tracer.String(tracer.AttrRecordID, recordID),
	)
	defer func() { span.End(err) }()

	caller = models.NormalizeIdentity(caller)
	start := time.Now()
	now := requestcontext.Now(ctx)

	txErr := s.tx.RunInTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}
		if !rec.IsOwner(caller) {
			if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionAccessDenied, caller, map[string]string{
				"operation": "delete",
				"reason":    string(access.ReasonNoMatchingGrant),
			}); auditErr != nil {
				return auditErr
			}
			return dErrors.New(dErrors.CodeForbidden, "access denied")
		}

		prior := rec.Clone()
		rec.Retention.Period = s.retention
		rec.Retention.ExpiresAt = now.Add(s.retention)
		rec.Retention.DeletionScheduled = true
		rec.UpdatedAt = now
		rec.Version++

		if saveErr := s.saveWithRetry(ctx, st, rec); saveErr != nil {
			return saveErr
		}
		if _, auditErr := s.appendEvent(ctx, recordID, audit.ActionDelete, caller, map[string]string{
			"operation": "delete",
			"outcome":   "scheduled",
		}); auditErr != nil {
			s.unwind(ctx, st, recordID, prior)
			return auditErr
		}
		return nil
	})
	if txErr != nil {
		s.countOp("delete", outcomeLabel(txErr))
		return txErr
	}

	s.observe("delete", start)
	s.countOp("delete", "success")
	return nil
}

// AuditTrail returns the record's audit events, newest-first, in the
// redacted external projection. Only the owner or an admin grant holder may
// read the trail.
func (s *Service) AuditTrail(ctx context.Context, recordID, caller string, filter audit.Filter) (events []audit.RedactedEvent, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRecordAudit,
		tracer.String(tracer.AttrRecordID, recordID),
	)
	defer func() { span.End(err) }()

	caller = models.NormalizeIdentity(caller)
	now := requestcontext.Now(ctx)

	txErr := s.tx.RunInReadTx(ctx, recordID, func(st store.Store) error {
		rec, getErr := s.getWithRetry(ctx, st, recordID)
		if getErr != nil {
			return getErr
		}
		return s.requireOwnerOrAdmin(ctx, rec, caller, now)
	})
	if txErr != nil {
		return nil, txErr
	}

	raw, listErr := s.audit.List(ctx, recordID, filter)
	if listErr != nil {
		return nil, listErr
	}
	events = make([]audit.RedactedEvent, 0, len(raw))
	for _, e := range raw {
		events = append(events, audit.Redact(e))
	}
	return events, nil
}

// PurgeExpired clears protected content from every record whose scheduled
// deletion has passed its retention expiry. The record shell, its metadata,
// and its audit trail remain. Returns the number of records purged.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	var candidates []*models.Record
	err := s.tx.RunInReadTx(ctx, "", func(st store.Store) error {
		return withBackoff(ctx, s.backoff, func() error {
			var listErr error
			candidates, listErr = st.ListDeletionScheduled(ctx)
			return listErr
		})
	})
	if err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx)
	purged := 0
	for _, candidate := range candidates {
		if !candidate.Retention.PurgeDue(now) {
			continue
		}
		txErr := s.tx.RunInTx(ctx, candidate.ID, func(st store.Store) error {
			rec, getErr := s.getWithRetry(ctx, st, candidate.ID)
			if getErr != nil {
				if errors.Is(getErr, store.ErrNotFound) {
					return nil
				}
				return getErr
			}
			// Re-check under the lock: an owner write may have rescinded the
			// schedule between listing and purging.
			if !rec.Retention.PurgeDue(now) {
				return nil
			}
			rec.Protected = make(map[string]fieldcipher.Envelope)
			rec.ContentLocator = ""
			rec.ContentHash = ""
			rec.RecomputeHash()
			rec.UpdatedAt = now
			rec.Version++
			if saveErr := s.saveWithRetry(ctx, st, rec); saveErr != nil {
				return saveErr
			}
			purged++
			if s.metrics != nil {
				s.metrics.IncrementPurged()
			}
			s.log(ctx, slog.LevelInfo, "record purged",
				"record_id", rec.ID,
			)
			return nil
		})
		if txErr != nil {
			return purged, txErr
		}
	}
	return purged, nil
}

// requireOwnerOrAdmin allows the record owner or a holder of an unexpired
// admin grant. Each grant evaluation appends one access_attempt; denials
// additionally append access_denied before the error surfaces.
func (s *Service) requireOwnerOrAdmin(ctx context.Context, rec *models.Record, caller string, now time.Time) error {
	if caller == "" {
		return dErrors.New(dErrors.CodeValidation, "caller identity required")
	}
	if rec.IsOwner(caller) {
		return nil
	}
	decision := access.Evaluate(rec, access.Request{
		Requester: caller,
		Operation: models.OperationAdmin,
	}, now)
	s.countDecision(decision)
	if _, auditErr := s.appendEvent(ctx, rec.ID, audit.ActionAccessAttempt, caller, map[string]string{
		"operation": string(models.OperationAdmin),
		"outcome":   string(decision.Outcome),
	}); auditErr != nil {
		return auditErr
	}
	if decision.Allowed() {
		return nil
	}
	if _, auditErr := s.appendEvent(ctx, rec.ID, audit.ActionAccessDenied, caller, map[string]string{
		"operation": string(models.OperationAdmin),
		"reason":    string(decision.Reason),
	}); auditErr != nil {
		return auditErr
	}
	return dErrors.New(dErrors.CodeForbidden, "access denied")
}

// unwind restores the pre-transaction record after a failed audit append so
// the mutation and its event stay paired. prior == nil means the record did
// not exist before this transaction.
func (s *Service) unwind(ctx context.Context, st store.Store, recordID string, prior *models.Record) {
	var unwindErr error
	if prior == nil {
		unwindErr = st.Delete(ctx, recordID)
	} else {
		unwindErr = st.Save(ctx, prior)
	}
	if unwindErr != nil {
		s.log(ctx, slog.LevelError, "failed to unwind record mutation",
			"record_id", recordID,
			"error", unwindErr,
		)
	}
}

func (s *Service) appendEvent(ctx context.Context, recordID string, action audit.Action, performedBy string, details map[string]string) (audit.Event, error) {
	return s.audit.Record(ctx, audit.Event{
		ID:          uuid.New().String(),
		RecordID:    recordID,
		Action:      action,
		PerformedBy: performedBy,
		Details:     details,
	})
}

func (s *Service) getWithRetry(ctx context.Context, st store.Store, recordID string) (*models.Record, error) {
	var rec *models.Record
	err := withBackoff(ctx, s.backoff, func() error {
		var getErr error
		rec, getErr = st.Get(ctx, recordID)
		return getErr
	})
	return rec, err
}

func (s *Service) saveWithRetry(ctx context.Context, st store.Store, rec *models.Record) error {
	return withBackoff(ctx, s.backoff, func() error {
		return st.Save(ctx, rec)
	})
}

func (s *Service) countOp(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementOperation(operation, outcome)
	}
}

func (s *Service) countDecision(d access.Decision) {
	if s.metrics != nil {
		s.metrics.IncrementAccessDecision(string(d.Reason))
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperationDuration(operation, time.Since(start).Seconds())
	}
}

func (s *Service) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, args...)
	}
}

// outcomeLabel maps an operation error to a coarse metrics label.
func outcomeLabel(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		return "denied"
	case dErrors.HasCode(err, dErrors.CodeIntegrityMismatch):
		return "integrity_failure"
	case dErrors.HasCode(err, dErrors.CodeAuthFailure):
		return "auth_failure"
	case dErrors.HasCode(err, dErrors.CodeConsentRequired):
		return "consent_required"
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return "not_found"
	default:
		return "error"
	}
}
