package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeInvalidText          = "22P02"
)

// Classify maps driver errors onto the apperr taxonomy. Errors that are
// already classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
			return apperr.Conflict(err)
		case codeUniqueViolation:
			return apperr.Integrity(pgErr.ConstraintName, err)
		case codeInvalidText, codeForeignKeyViolation:
			return apperr.NotFound("resource")
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Conflict(err)
	}
	return err
}

// IsUniqueViolation reports whether err is a 23505 on the named constraint
// (any constraint when name is empty).
func IsUniqueViolation(err error, name string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return name == "" || pgErr.ConstraintName == name
}
