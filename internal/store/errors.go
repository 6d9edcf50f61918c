package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Clark-Hu/store-ratings/internal/domain"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateQueryCanceled        = "57014"
)

// constraintMessages turns schema constraint names into caller-facing text.
var constraintMessages = map[string]string{
	"users_email_key":             "a user with this email already exists",
	"ratings_user_store_key":      "user has already rated this store",
	"ratings_user_id_fkey":        "user not found",
	"ratings_store_id_fkey":       "store not found",
	"stores_owner_id_fkey":        "owner not found",
	"ratings_rating_check":        "rating must be between 1 and 5",
	"stores_overall_rating_check": "overall rating must be between 0 and 5",
}

// MapError maps infrastructure failures into coded domain errors. Errors that
// already carry a code pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *domain.Error
	if errors.As(err, &coded) {
		return err
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.NewError(domain.CodeNotFound, op, "resource not found", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), pgconn.Timeout(err):
		return domain.NewError(domain.CodeRetryable, op, "operation timed out", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg := constraintMessages[pgErr.ConstraintName]
		switch strings.TrimSpace(pgErr.Code) {
		case sqlStateUniqueViolation:
			return domain.NewError(domain.CodeConflict, op, fallback(msg, "duplicate value"), err)
		case sqlStateForeignKeyViolation:
			return domain.NewError(domain.CodeNotFound, op, fallback(msg, "referenced resource not found"), err)
		case sqlStateCheckViolation:
			return domain.NewError(domain.CodeValidation, op, fallback(msg, "value out of range"), err)
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return domain.NewError(domain.CodeRetryable, op, "concurrent update, please retry", err)
		case sqlStateQueryCanceled:
			return domain.NewError(domain.CodeRetryable, op, "operation timed out", err)
		}
	}
	return domain.NewError(domain.CodeInternal, op, "internal error", err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	default:
		return false
	}
}

func fallback(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}
