package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, the helper also
// requires the constraint name to match.
func IsUniqueViolation(err error, constraintName string) bool {
	code, constraint, msg := driverError(err)
	if code == pgUniqueViolation {
		return constraintName == "" || constraint == constraintName
	}
	// sqlite surfaces constraint failures as plain text
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}

// IsCheckViolation reports whether the error is a CHECK constraint violation,
// optionally scoped to a named constraint. The non-negative stock constraint
// is the backstop for concurrent decrements, so callers translate this into a
// sold-out result rather than a 500.
func IsCheckViolation(err error, constraintName string) bool {
	code, constraint, msg := driverError(err)
	if code == pgCheckViolation {
		return constraintName == "" || constraint == constraintName
	}
	if strings.Contains(msg, "CHECK constraint failed") {
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}

func driverError(err error) (code, constraint, msg string) {
	if err == nil {
		return "", "", ""
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, pgxErr.Message
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, pqErr.Message
	}

	return "", "", err.Error()
}
