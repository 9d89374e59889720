package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNumericOutOfRange    = "22003"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// transient reports errors a fresh transaction may not hit again.
func transient(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// classify turns a driver error into an apperr. what names the record for
// messages ("product", "order").
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.NotFound, what+" not found")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(err, apperr.Busy, "timed out waiting for "+what+", try again")
	}
	switch pgCode(err) {
	case codeUniqueViolation:
		return apperr.Wrap(err, apperr.Conflict, what+" already exists")
	case codeForeignKeyViolation:
		return apperr.Wrap(err, apperr.Conflict, what+" is referenced by other records")
	case codeCheckViolation:
		return apperr.Wrap(err, apperr.Validation, what+" violates a constraint")
	case codeNumericOutOfRange:
		return apperr.Wrap(err, apperr.Validation, what+" value is out of range")
	case codeLockNotAvailable:
		return apperr.Wrap(err, apperr.Busy, what+" is locked by another transaction, try again")
	case codeSerializationFailure, codeDeadlockDetected:
		return apperr.Wrap(err, apperr.Busy, "concurrent update, try again")
	}
	return apperr.Wrap(err, apperr.Internal, apperr.SystemErrorMessage)
}
