package shared

import "errors"

var (
	// ErrLockHeld indicates another process owns the requested lock.
	ErrLockHeld = errors.New("lock held by another process")
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
)
