package model

import "errors"

// Sentinel errors for the proposal lifecycle. Callers classify failures with
// errors.Is so wrapped context survives up to the API layer.
var (
	// ErrValidation marks a missing or malformed field on an ingestion or
	// review input. No state is mutated.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an action targeting an identity absent from the store.
	ErrNotFound = errors.New("proposal not found")

	// ErrInvalidTransition marks an attempted transition out of a terminal
	// state, or an unknown review action.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrFloorUnavailable marks a failed minimum-price lookup during
	// strict-mode ingestion. The batch aborts rather than silently falling
	// back to the degraded policy.
	ErrFloorUnavailable = errors.New("minimum price unavailable")

	// ErrStoreUnavailable marks a store-level outage. Fatal for the operation
	// in progress; never assumed to have partially written.
	ErrStoreUnavailable = errors.New("proposal store unavailable")
)
