package infra

import (
	"context"
	"errors"

	"smartpos/internal/apierror"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATEs that mean "the transaction lost a race or ran out of
// time"; the whole unit of work can be retried.
const (
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// ClassifyTxError maps driver and context failures of a transaction to the
// domain taxonomy. Domain errors returned by the unit of work pass through.
func ClassifyTxError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apierror.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apierror.TransactionTimeout(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled, pgSerializationFailure, pgDeadlockDetected:
			return apierror.TransactionTimeout(err)
		}
	}
	return err
}

// IsUniqueViolation reports a 23505 from PostgreSQL.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
