package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"custodia/internal/audit/metrics"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// Recorder is the only writer of the audit sequence. Appends are synchronous:
// if the store cannot persist the event, the error propagates and the
// triggering operation must fail. There is no buffered or best-effort path
// for access-relevant events.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithMetrics sets the metrics instance for the recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithLogger sets a logger for append diagnostics. Log lines never include
// field plaintext or ciphertext material.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder constructs the audit recorder.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record validates, enriches, and appends one event. ID, timestamp, and
// client metadata are filled from context when absent so call sites stay
// small. Returns the appended event for callers that report it.
func (r *Recorder) Record(ctx context.Context, event Event) (Event, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.IPAddress == "" {
		event.IPAddress = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}

	if err := event.Validate(); err != nil {
		return Event{}, err
	}

	start := time.Now()
	if err := r.store.Append(ctx, event); err != nil {
		if r.metrics != nil {
			r.metrics.IncrementAppendFailures()
		}
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "audit append failed",
				"action", event.Action,
				"record_id", event.RecordID,
				"error", err,
			)
		}
		return Event{}, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "audit append failed")
	}
	if r.metrics != nil {
		r.metrics.IncrementEventsAppended(string(event.Action))
		r.metrics.ObserveAppendLatency(time.Since(start).Seconds())
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "audit event",
			"action", event.Action,
			"record_id", event.RecordID,
			"performed_by", event.PerformedBy,
			"log_type", "audit",
		)
	}
	return event, nil
}

// List returns a record's trail newest-first. The store keeps events
// oldest-first; the reversal here is a consumer convenience only.
func (r *Recorder) List(ctx context.Context, recordID string, filter Filter) ([]Event, error) {
	stored, err := r.store.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "audit read failed")
	}

	var result []Event
	for i := len(stored) - 1; i >= 0; i-- {
		if !filter.Matches(stored[i]) {
			continue
		}
		result = append(result, stored[i])
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// Count returns the number of events appended for a record.
func (r *Recorder) Count(ctx context.Context, recordID string) (int, error) {
	return r.store.CountByRecord(ctx, recordID)
}
