package repository

import "errors"

// Sentinel errors returned by the store.
var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("conflicting write")
	ErrNegativeCounter = errors.New("increment refused by non-negative guard")
	ErrUnknownCounter  = errors.New("unknown counter column")
	ErrUnsupportedDB   = errors.New("unsupported database driver")
)
