package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/metrics"
	"rewardhub/internal/pkg/db"
	"rewardhub/internal/pkg/lock"
)

// Runner executes an operation as one unit: keyed in-process locks, a
// deadline, and a database transaction that commits only when the
// operation returns nil.
type Runner struct {
	pool         *pgxpool.Pool
	locks        *lock.KeyLock
	lockTimeout  time.Duration
	queryTimeout time.Duration
	metrics      *metrics.Metrics
}

// NewRunner creates a Runner.
func NewRunner(pool *pgxpool.Pool, locks *lock.KeyLock, lockTimeout, queryTimeout time.Duration, m *metrics.Metrics) *Runner {
	return &Runner{
		pool:         pool,
		locks:        locks,
		lockTimeout:  lockTimeout,
		queryTimeout: queryTimeout,
		metrics:      m,
	}
}

// InTx runs fn while holding the locks in keys, inside a transaction.
func (r *Runner) InTx(ctx context.Context, op string, keys []string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := db.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	err := r.locks.WithLockContext(ctx, r.lockTimeout, func() error {
		return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
			return fn(ctx, tx)
		})
	}, keys...)
	return r.finish(op, err)
}

// Read runs a non-mutating fn under the query deadline.
func (r *Runner) Read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := db.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	return r.finish(op, fn(ctx))
}

func (r *Runner) finish(op string, err error) error {
	err = classify(op, err)
	if err == nil {
		return nil
	}
	kind := ErrorKind(err)
	r.metrics.Failure(op, kind)
	if kind == "persistence" {
		log.Error().Err(err).Str("op", op).Msg("Operation failed")
	}
	return err
}
