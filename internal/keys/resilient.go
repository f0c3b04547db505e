package keys

import (
	"context"
	"log/slog"
	"time"

	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/circuit"
)

// defaultCooldown bounds how long an open circuit refuses calls before
// probing the key service again.
const defaultCooldown = 30 * time.Second

// ResilientProvider wraps a Provider with circuit breaker protection so a
// flapping external key service degrades to fast store_unavailable failures
// instead of hanging every record operation behind timeouts.
type ResilientProvider struct {
	delegate Provider
	cb       *circuit.Breaker
	logger   *slog.Logger
}

// NewResilientProvider creates a circuit-breaker-protected key provider.
// While the circuit is open, calls fail fast without reaching the delegate
// until the cooldown elapses; callers may override the breaker defaults.
func NewResilientProvider(delegate Provider, logger *slog.Logger, opts ...circuit.Option) *ResilientProvider {
	opts = append([]circuit.Option{circuit.WithCooldown(defaultCooldown)}, opts...)
	return &ResilientProvider{
		delegate: delegate,
		cb:       circuit.New("key_provider", opts...),
		logger:   logger,
	}
}

// FieldKey fetches the key through the breaker. Failures are normalized to
// store_unavailable: the key provider is infrastructure, and the lifecycle
// manager owns the retry policy.
func (r *ResilientProvider) FieldKey(ctx context.Context, recordID string) ([]byte, error) {
	var key []byte
	err := r.cb.Do(func() error {
		var innerErr error
		key, innerErr = r.delegate.FieldKey(ctx, recordID)
		return innerErr
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		if r.cb.IsOpen() && r.logger != nil {
			r.logger.WarnContext(ctx, "key provider circuit open",
				"circuit", r.cb.Name(),
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "key provider unavailable")
	}
	return key, nil
}
