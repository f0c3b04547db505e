package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(2))

	failFast, change := b.RecordFailure()
	assert.False(t, failFast)
	assert.False(t, change.Opened)

	failFast, change = b.RecordFailure()
	assert.True(t, failFast)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	failFast, _ := b.RecordFailure()
	assert.False(t, failFast)
	assert.False(t, b.IsOpen())
}

func TestDoFailsFastDuringCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := New("test", WithFailureThreshold(2), WithCooldown(time.Minute))
	b.now = func() time.Time { return now }

	calls := 0
	fail := func() error { calls++; return errors.New("boom") }

	require.Error(t, b.Do(fail))
	require.Error(t, b.Do(fail))
	require.True(t, b.IsOpen())

	// Open and inside the cooldown: the dependency is never invoked.
	assert.ErrorIs(t, b.Do(fail), ErrOpen)
	assert.Equal(t, 2, calls)

	// Cooldown elapsed: the next call probes the dependency again.
	now = now.Add(2 * time.Minute)
	err := b.Do(fail)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOpen)
	assert.Equal(t, 3, calls)

	// The failed probe restarted the cooldown.
	assert.ErrorIs(t, b.Do(fail), ErrOpen)
	assert.Equal(t, 3, calls)
}

func TestClosesAfterSuccessfulProbes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Minute))
	b.now = func() time.Time { return now }

	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	require.True(t, b.IsOpen())

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.True(t, b.IsOpen())
	require.NoError(t, b.Do(func() error { return nil }))
	assert.False(t, b.IsOpen())
}

func TestZeroCooldownAlwaysProbes(t *testing.T) {
	b := New("test", WithFailureThreshold(1))

	calls := 0
	fail := func() error { calls++; return errors.New("boom") }

	require.Error(t, b.Do(fail))
	require.True(t, b.IsOpen())
	err := b.Do(fail)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls)
}
