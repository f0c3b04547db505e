package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"custodia/internal/record/store"
	dErrors "custodia/pkg/domain-errors"
	platformsync "custodia/pkg/platform/sync"
)

// Shard contention metrics for monitoring lock behavior
var (
	shardLockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "custodia_record_shard_lock_wait_seconds",
		Help:    "Time spent waiting to acquire record shard lock",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	shardLockAcquisitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "custodia_record_shard_lock_acquisitions_total",
		Help: "Total number of record shard lock acquisitions",
	})
)

// RecordTx provides a transactional boundary for record mutations. A record's
// protected fields, grant list, integrity hash, and version only ever change
// inside RunInTx, so concurrent writers to the same record serialize and the
// hash never straddles a partial mutation. Snapshot reads go through
// RunInReadTx and share the shard.
type RecordTx interface {
	RunInTx(ctx context.Context, recordID string, fn func(store store.Store) error) error
	RunInReadTx(ctx context.Context, recordID string, fn func(store store.Store) error) error
}

// defaultTxTimeout is the maximum duration for a record transaction.
const defaultTxTimeout = 5 * time.Second

type shardedRecordTx struct {
	mu      *platformsync.ShardedRWMutex
	store   store.Store
	timeout time.Duration
}

// NewShardedTx wraps a record store with a per-record sharded lock boundary.
func NewShardedTx(s store.Store, timeout time.Duration) RecordTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &shardedRecordTx{
		mu:      platformsync.NewShardedRWMutex(),
		store:   s,
		timeout: timeout,
	}
}

func (t *shardedRecordTx) RunInTx(ctx context.Context, recordID string, fn func(store store.Store) error) error {
	return t.run(ctx, recordID, fn, false)
}

func (t *shardedRecordTx) RunInReadTx(ctx context.Context, recordID string, fn func(store store.Store) error) error {
	return t.run(ctx, recordID, fn, true)
}

func (t *shardedRecordTx) run(ctx context.Context, recordID string, fn func(store store.Store) error, readOnly bool) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	lockStart := time.Now()
	if readOnly {
		t.mu.RLock(recordID)
		defer t.mu.RUnlock(recordID)
	} else {
		t.mu.Lock(recordID)
		defer t.mu.Unlock(recordID)
	}
	shardLockWaitDuration.Observe(time.Since(lockStart).Seconds())
	shardLockAcquisitions.Inc()

	// Check again after acquiring the lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}
