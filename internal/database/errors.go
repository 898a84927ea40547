package database

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code raised when an insert or
// update breaks a unique constraint.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation.
// The identifier claim path treats this the same as a lost insert race and
// regenerates, so callers stay independent of the driver's error shape.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
