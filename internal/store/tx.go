package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Clark-Hu/store-ratings/internal/domain"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner is the transaction boundary used by invariant-critical writes and
// by reads that must see one snapshot.
type TxRunner interface {
	InTx(ctx context.Context, op string, fn func(ctx context.Context, q Querier) error) error
	InSnapshot(ctx context.Context, op string, fn func(ctx context.Context, q Querier) error) error
}

var _ TxRunner = (*Store)(nil)

// InTx runs fn inside a READ COMMITTED transaction. fn must take any row locks
// it depends on and must issue every statement with the context it is handed,
// which carries the Options.TxTimeout deadline. The transaction is retried from
// scratch on serialization failures and deadlocks, up to Options.TxMaxAttempts.
// The returned error is already mapped through MapError.
func (s *Store) InTx(ctx context.Context, op string, fn func(ctx context.Context, q Querier) error) error {
	if s == nil || s.pool == nil {
		return domain.NewError(domain.CodeInternal, op, "store not initialized", nil)
	}
	attempts := s.opts.TxMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.runOnce(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		s.logger.Warn("transaction conflict, retrying", "op", op, "attempt", attempt, "error", err)
		if attempt < attempts {
			if sleepErr := sleepCtx(ctx, backoff(attempt)); sleepErr != nil {
				break
			}
		}
	}
	return MapError(op, err)
}

// InSnapshot runs fn in a read-only REPEATABLE READ transaction, so every
// statement fn issues sees the same snapshot. It is not retried.
func (s *Store) InSnapshot(ctx context.Context, op string, fn func(ctx context.Context, q Querier) error) error {
	if s == nil || s.pool == nil {
		return domain.NewError(domain.CodeInternal, op, "store not initialized", nil)
	}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return MapError(op, s.runOnce(ctx, opts, fn))
}

func (s *Store) runOnce(ctx context.Context, txOpts pgx.TxOptions, fn func(ctx context.Context, q Querier) error) (err error) {
	txCtx := ctx
	if s.opts.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.opts.TxTimeout)
		defer cancel()
	}

	tx, err := s.pool.BeginTx(txCtx, txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(txCtx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(txCtx, tx); err != nil {
		return err
	}
	if err = tx.Commit(txCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 10 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
