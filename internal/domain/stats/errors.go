package stats

import "errors"

var (
	// ErrNotFound means the entity id does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrNegativeCounter means the delta would take the counter below zero.
	ErrNegativeCounter = errors.New("counter would become negative")
	// ErrUpdateFailed wraps any other storage failure.
	ErrUpdateFailed = errors.New("counter update failed")
)
