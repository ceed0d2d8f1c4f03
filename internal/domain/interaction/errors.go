package interaction

import "errors"

var (
	// ErrToggleFailed means an unlike removed no record, typically because a
	// concurrent unlike won.
	ErrToggleFailed = errors.New("toggle failed")
	// ErrCreateFailed wraps a ledger insert failure other than a duplicate.
	ErrCreateFailed = errors.New("create interaction failed")
	// ErrDeleteFailed wraps a ledger delete failure.
	ErrDeleteFailed = errors.New("delete interaction failed")
	// ErrUnknownGroup rejects an interaction on a group outside model.Group.
	ErrUnknownGroup = errors.New("unknown entity group")
)
