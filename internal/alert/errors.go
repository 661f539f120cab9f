package alert

import "errors"

// Sentinel errors for the core error taxonomy. Storage adapters and
// components wrap these so callers can classify failures with errors.Is.
var (
	// ErrValidation is returned when a rule write carries a value outside
	// its enum, or a raw alert is structurally unusable. Nothing is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced alert or rule does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned for illegal lifecycle operations,
	// e.g. acknowledging a resolved alert. State is unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrVersionConflict is returned when an optimistic-concurrency check
	// fails on a lifecycle mutation. Callers should re-read and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrPersistence wraps storage layer failures. The core does not retry.
	ErrPersistence = errors.New("persistence failure")
)
