package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger clears protected payloads from records whose retention window has
// closed. Implemented by the record lifecycle service.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Sweeper periodically purges expired records. Purging clears protected
// fields and attached content while leaving the audit trail intact.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
}

// Option configures Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for sweep errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Sweeper with options applied.
func New(purger Purger, opts ...Option) (*Sweeper, error) {
	if purger == nil {
		return nil, fmt.Errorf("purger is required")
	}
	s := &Sweeper{
		purger:   purger,
		interval: time.Hour,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start runs sweeps periodically until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	purged, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired records: %w", err)
	}
	if purged > 0 {
		s.logger.InfoContext(ctx, "retention sweep purged records", "count", purged)
	}
	return nil
}
