package service

import "errors"

// Errors surfaced to the transport layer.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNickTaken    = errors.New("nick already taken")
	ErrForbidden    = errors.New("forbidden")
	ErrNotStarted   = errors.New("service not started")
)
