package domain

import "errors"

var (
	// ErrValidation marks caller input that fails domain validation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks lookups for destinations or batches that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrCapacityExceeded is returned when the pending queue is at max capacity.
	ErrCapacityExceeded = errors.New("pending queue capacity exceeded")

	// ErrInvalidConfig is returned for queue settings below the enforced minimum.
	ErrInvalidConfig = errors.New("invalid configuration")
)
