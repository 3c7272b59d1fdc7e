package store

import "errors"

// Typed failures surfaced to callers. An operation returning one of
// these sentinels (wrapped with context) has left the store unchanged.
var (
	// ErrConstraintViolation reports that the exclusive user-name
	// constraint would be broken.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrDanglingReference reports a link operation whose target does
	// not currently exist.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrNotFound reports an operation addressed to an unknown record id.
	ErrNotFound = errors.New("not found")
)
