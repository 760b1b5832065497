package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// MapError maps sql.ErrNoRows to notFound and a unique violation to
// duplicate. Other errors, including nil, pass through.
func MapError(err, notFound, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	case sqlState(err) == codeUniqueViolation:
		return duplicate
	}
	return err
}

// IsConflict reports whether a fresh transaction may succeed where err
// failed: serialization failures, deadlocks and unique violations raised by
// a concurrent insert.
func IsConflict(err error) bool {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return true
	}
	return false
}
