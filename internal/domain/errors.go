package domain

import "errors"

var (
	// ErrValidation marks request-level validation failures (empty body, no recipients).
	ErrValidation = errors.New("validation error")
	// ErrInvalidRecipient marks a recipient value that failed normalization.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrInvalidConfig marks configuration values that cannot be acted on.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotFound marks a missing persisted entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected because of current state.
	ErrConflict = errors.New("conflict")
	// ErrInconsistent marks a bulk write that touched an unexpected number of rows.
	// Reconciliation treats it as an invariant violation and rolls back.
	ErrInconsistent = errors.New("inconsistent state")
)
