package keys

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/circuit"
)

func TestStaticProvider_DerivesDistinctKeysPerRecord(t *testing.T) {
	master := make([]byte, 32)
	p, err := NewStaticProvider(master)
	require.NoError(t, err)

	k1, err := p.FieldKey(context.Background(), "rec-1")
	require.NoError(t, err)
	k2, err := p.FieldKey(context.Background(), "rec-2")
	require.NoError(t, err)

	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2)

	// Derivation is deterministic for the same record.
	again, err := p.FieldKey(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, k1, again)
}

func TestStaticProvider_Validation(t *testing.T) {
	_, err := NewStaticProvider(make([]byte, 16))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	p, err := NewStaticProvider(make([]byte, 32))
	require.NoError(t, err)
	_, err = p.FieldKey(context.Background(), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

type failingProvider struct {
	calls int
	err   error
}

func (f *failingProvider) FieldKey(context.Context, string) ([]byte, error) {
	f.calls++
	return nil, f.err
}

func TestResilientProvider_NormalizesOutageErrors(t *testing.T) {
	delegate := &failingProvider{err: errors.New("dial tcp: connection refused")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewResilientProvider(delegate, logger, circuit.WithFailureThreshold(2))

	for i := 0; i < 3; i++ {
		_, err := p.FieldKey(context.Background(), "rec-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
	}
}

func TestResilientProvider_FailsFastWhileOpen(t *testing.T) {
	delegate := &failingProvider{err: errors.New("dial tcp: connection refused")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewResilientProvider(delegate, logger, circuit.WithFailureThreshold(2))

	for i := 0; i < 5; i++ {
		_, err := p.FieldKey(context.Background(), "rec-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
	}

	// The circuit opened on the second failure; within the cooldown the
	// remaining calls fail fast without reaching the delegate.
	assert.Equal(t, 2, delegate.calls)
}

func TestResilientProvider_PassesThroughValidationErrors(t *testing.T) {
	delegate := &failingProvider{err: dErrors.New(dErrors.CodeValidation, "record ID required for key derivation")}
	p := NewResilientProvider(delegate, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := p.FieldKey(context.Background(), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestResilientProvider_DelegatesOnSuccess(t *testing.T) {
	inner, err := NewStaticProvider(make([]byte, 32))
	require.NoError(t, err)
	p := NewResilientProvider(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	key, err := p.FieldKey(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Len(t, key, 32)
}
