// internal/library/errors.go
package library

import "errors"

var (
	// ErrNotFound marks an operation that references a user or active
	// checkout that does not exist. Recoverable; callers translate it into
	// a user-visible message.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation that violates a lending rule, such as
	// checking out an unavailable book. Recoverable.
	ErrConflict = errors.New("conflict")

	// ErrConsistency marks a violated invariant: a programming or data
	// integrity error. It must propagate as a hard failure and is never
	// silently repaired.
	ErrConsistency = errors.New("consistency violation")
)
