package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"custodia/internal/audit"
	"custodia/internal/consent/metrics"
	"custodia/internal/consent/models"
	"custodia/internal/consent/store"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// defaultFreshnessWindow bounds how long a granted consent stays usable.
// Preserved from the source system as a configurable parameter.
const defaultFreshnessWindow = 30 * 24 * time.Hour

// Option configures the Ledger.
type Option func(*Ledger)

// Ledger is the append-only consent history per (subject, type). The most
// recent record by timestamp is authoritative; a grant is only usable within
// the freshness window. Callers must not cache a positive verification beyond
// that window.
type Ledger struct {
	store           store.Store
	metrics         *metrics.Metrics
	logger          *slog.Logger
	freshnessWindow time.Duration
}

// NewLedger constructs the consent ledger.
func NewLedger(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:           s,
		freshnessWindow: defaultFreshnessWindow,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.freshnessWindow <= 0 {
		l.freshnessWindow = defaultFreshnessWindow
	}
	return l
}

// WithMetrics sets the metrics instance for the ledger.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithLogger sets the logger instance for the ledger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithFreshnessWindow configures the maximum age of a granted consent.
// If not set or set to zero/negative, defaults to 30 days.
func WithFreshnessWindow(window time.Duration) Option {
	return func(l *Ledger) {
		if window > 0 {
			l.freshnessWindow = window
		}
	}
}

// FreshnessWindow reports the configured window, for callers sizing caches.
func (l *Ledger) FreshnessWindow() time.Duration {
	return l.freshnessWindow
}

// Record appends one consent decision together with its consent_recorded
// audit event. The store guarantees the pair commits atomically.
func (l *Ledger) Record(ctx context.Context, subject string, ctype models.Type, granted bool, consentContext string) (*models.Record, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject ID required")
	}
	if !ctype.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid consent type: %s", ctype))
	}

	now := requestcontext.Now(ctx)
	record, err := models.NewRecord(
		fmt.Sprintf("consent_%s", uuid.New().String()),
		subject, ctype, granted, now, consentContext,
	)
	if err != nil {
		return nil, err
	}

	decision := "revoked"
	if granted {
		decision = "granted"
	}
	event := audit.Event{
		ID:          uuid.New().String(),
		RecordID:    subject,
		Action:      audit.ActionConsentRecorded,
		PerformedBy: subject,
		Timestamp:   now,
		IPAddress:   requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		Details: map[string]string{
			"purpose": string(ctype),
			"outcome": decision,
		},
	}

	if err := l.store.Append(ctx, record, event); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to append consent")
	}

	if l.metrics != nil {
		l.metrics.IncrementRecorded(string(ctype), granted)
	}
	l.log(ctx, slog.LevelInfo, "consent_recorded", subject, ctype, decision)
	return record, nil
}

// Verify reports whether the subject holds a fresh grant for the type. The
// latest record by timestamp is authoritative: a newer revocation defeats an
// older grant, and an old grant goes stale once the window elapses, with no
// new record being written.
func (l *Ledger) Verify(ctx context.Context, subject string, ctype models.Type) (bool, error) {
	if subject == "" {
		return false, dErrors.New(dErrors.CodeValidation, "subject ID required")
	}
	if !ctype.IsValid() {
		return false, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid consent type: %s", ctype))
	}

	latest, err := l.store.Latest(ctx, subject, ctype)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.countCheck(ctype, false)
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to read consent")
	}

	fresh := latest.IsFresh(requestcontext.Now(ctx), l.freshnessWindow)
	l.countCheck(ctype, fresh)
	if !fresh {
		l.log(ctx, slog.LevelWarn, "consent_check_failed", subject, ctype, staleReason(latest, requestcontext.Now(ctx), l.freshnessWindow))
	}
	return fresh, nil
}

// Require returns consent_required unless the subject holds a fresh grant.
func (l *Ledger) Require(ctx context.Context, subject string, ctype models.Type) error {
	fresh, err := l.Verify(ctx, subject, ctype)
	if err != nil {
		return err
	}
	if !fresh {
		return dErrors.New(dErrors.CodeConsentRequired, "fresh consent required for "+string(ctype))
	}
	return nil
}

// History returns the full consent trail for (subject, type), newest-first.
func (l *Ledger) History(ctx context.Context, subject string, ctype models.Type) ([]*models.Record, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject ID required")
	}
	records, err := l.store.History(ctx, subject, ctype)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to read consent history")
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if l.metrics != nil {
		l.metrics.ObserveHistoryLength(len(records))
	}
	return records, nil
}

func (l *Ledger) countCheck(ctype models.Type, fresh bool) {
	if l.metrics != nil {
		l.metrics.IncrementCheck(string(ctype), fresh)
	}
}

func (l *Ledger) log(ctx context.Context, level slog.Level, msg, subject string, ctype models.Type, state string) {
	if l.logger == nil {
		return
	}
	l.logger.Log(ctx, level, msg,
		"subject", subject,
		"consent_type", ctype,
		"state", state,
	)
}

func staleReason(r *models.Record, now time.Time, window time.Duration) string {
	if !r.Granted {
		return "revoked"
	}
	if now.Sub(r.Timestamp) > window {
		return "stale"
	}
	return "fresh"
}
