package schema

import "errors"

var (
	// ErrInvalidIdentifier is returned when a table or column name fails the
	// safe-identifier predicate.
	ErrInvalidIdentifier = errors.New("schema: invalid identifier")

	// ErrTableNotFound is returned when a table does not exist or is hidden
	// from the gateway.
	ErrTableNotFound = errors.New("schema: table not found")
)
