package persistence

import (
	"errors"
	"strings"

	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// isUniqueViolation reports whether the error is a unique constraint
// violation on any supported driver. Postgres is the production driver;
// sqlite shows up in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// translateError maps driver errors to domain errors. Callers that need to
// convert an insert into a merge rely on shared.ErrDuplicateKey coming back
// from natural-key collisions.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if isUniqueViolation(err) {
		return shared.ErrDuplicateKey
	}
	return err
}
