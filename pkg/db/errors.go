package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, the constraint must match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if code, constraint, ok := sqlState(err); ok {
		if code != sqlStateUniqueViolation {
			return false
		}
		return constraintName == "" || constraint == constraintName
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsCheckViolation reports whether a CHECK constraint rejected the write.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, _, ok := sqlState(err); ok {
		return code == sqlStateCheckViolation
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// IsRetryableConflict reports serialization failures, deadlocks and lock timeouts
// that a caller may safely retry.
func IsRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	if code, _, ok := sqlState(err); ok {
		switch code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func sqlState(err error) (code string, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
