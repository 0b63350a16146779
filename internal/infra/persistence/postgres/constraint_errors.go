package postgres

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Helper functions for PostgreSQL error checking. The SQLSTATE codes cover drivers
// opened without gorm's TranslateError.
func isUniqueConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "sqlstate 23505") ||
		strings.Contains(errMsg, "duplicate key value")
}

func isForeignKeyConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "sqlstate 23503")
}

// isSerializationFailure reports lost races the caller may retry: serialization
// failures and deadlocks between two FOR UPDATE lockers.
func isSerializationFailure(err error) bool {
	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "sqlstate 40001") ||
		strings.Contains(errMsg, "sqlstate 40p01") ||
		strings.Contains(errMsg, "deadlock detected") ||
		strings.Contains(errMsg, "could not serialize access")
}
