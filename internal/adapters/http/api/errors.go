package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing member id")
)

// Wrap prefixes err with the handler operation.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// WrapKind tags cause with a sentinel kind so callers can match either.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

// NewKind reports a sentinel kind without an underlying cause.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}
