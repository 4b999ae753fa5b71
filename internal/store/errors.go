package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleWrite is returned when an update presented a version that no
// longer matches the stored row.
var ErrStaleWrite = errors.New("stale write")

// ErrDuplicateName is returned when a skill name is already taken.
var ErrDuplicateName = errors.New("duplicate skill name")

// ErrDuplicateUsername is returned when a username is already taken.
var ErrDuplicateUsername = errors.New("duplicate username")

// pg error code for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
