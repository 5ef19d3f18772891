package pgutils

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeIntegrityViolation   = "23000"
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
)

func hasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}

	return false
}

// IsUniqueViolation reports a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsUniqueViolationOf reports a unique violation raised by the named constraint or index.
func IsUniqueViolationOf(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraint
}

// IsContention reports transient lock failures: lock wait exceeded, deadlock
// or serialization conflict. Callers may retry.
func IsContention(err error) bool {
	return hasCode(err, codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure)
}

// IsIntegrityViolation reports a violation raised by a schema-level integrity check.
func IsIntegrityViolation(err error) bool {
	return hasCode(err, codeIntegrityViolation)
}
