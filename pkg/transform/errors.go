package transform

import "errors"

// Pipeline errors.
var (
	// ErrParam is returned for invalid stage configuration.
	ErrParam = errors.New("transform: invalid parameter")
	// ErrState is returned when an operation is not legal in the stage's state.
	ErrState = errors.New("transform: invalid state")
	// ErrNextStageMissing is returned when a stage needs a downstream stage
	// and none was given, or the given one is no longer accepting data.
	ErrNextStageMissing = errors.New("transform: next stage missing")
	// ErrFatal is returned for unrecoverable codec corruption.
	ErrFatal = errors.New("transform: fatal codec error")
)
