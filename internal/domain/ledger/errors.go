package ledger

import "errors"

var (
	// ErrDuplicate is returned by Create when the tuple already has a record.
	ErrDuplicate = errors.New("interaction record already exists")
	// ErrNotFound is returned by Find when no record matches.
	ErrNotFound = errors.New("interaction record not found")
)
