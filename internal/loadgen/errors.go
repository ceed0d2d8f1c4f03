package loadgen

import "errors"

// Sentinel errors reported by Run.
var (
	ErrUnhealthy = errors.New("service unhealthy")
	ErrStatus    = errors.New("unexpected status")
	ErrMismatch  = errors.New("counters do not match the replay")
)
