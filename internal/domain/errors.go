package domain

import "errors"

var (
	// ErrValidation marks malformed or missing required input. Reported to
	// the caller, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks a caller lacking the operator role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPersistence marks a storage layer failure. At the aggregate level it
	// surfaces as partial degradation rather than a hard failure.
	ErrPersistence = errors.New("persistence failure")

	// ErrUpstream marks an unreachable or malformed external provider. It is
	// always contained at the producer boundary and never propagates past the
	// aggregator.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrConflict marks a state transition the curated-source FSM forbids.
	ErrConflict = errors.New("conflicting state transition")
)
