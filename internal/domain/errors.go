package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict: idempotency key already exists")
	ErrInvalidAction    = errors.New("action name must not be empty")
	ErrUnknownAction    = errors.New("unknown action: no handler registered under that name")
	ErrInvalidPriority  = errors.New("invalid priority: must be high, normal, or low")
	ErrPayloadTooLarge  = errors.New("payload exceeds maximum of 64KiB")
	ErrGroupEmpty       = errors.New("group must contain at least one invocation")
	ErrGroupTooLarge    = errors.New("group exceeds maximum of 1000 invocations")
	ErrAlreadyCancelled = errors.New("invocation is already cancelled")
	ErrNotCancellable   = errors.New("invocation cannot be cancelled in its current phase")
	ErrQueueFull        = errors.New("queue is at capacity, try again later")
)
