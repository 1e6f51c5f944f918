package store

import "errors"

var (
	// ErrConnection is returned when a session could not be opened on the
	// backing store, either because the connection descriptor is invalid or
	// because the store is unreachable.
	ErrConnection = errors.New("could not open a session on the store")

	// ErrQuery is returned when a predicate or inclusion plan does not match
	// the record schema, such as an inclusion plan naming a relation the
	// record type does not have.
	ErrQuery = errors.New("query does not match the record schema")

	// ErrValidation is returned when the store rejects a write due to a
	// constraint violation.
	ErrValidation = errors.New("a constraint was violated")

	// ErrConcurrency is returned when the store detects that a record was
	// modified by someone else since it was read. It is only produced by
	// backends with version checking configured.
	ErrConcurrency = errors.New("record was modified concurrently")

	// ErrNotFound is returned when the requested record does not exist in the
	// store.
	ErrNotFound = errors.New("the requested record was not found")

	// ErrStore is a general error with the backing store. Backend
	// implementations wrap driver errors with it where no more specific
	// sentinel applies.
	ErrStore = errors.New("an error occurred with the backing store")
)
