// Package transform implements a streaming codec pipeline.
//
// A pipeline is a chain of stages built tail first: the terminal sink is
// created, then each upstream stage is created holding the stage below it.
// Feeding the head stage transforms the data and forwards complete output
// units down the chain. Finalizing flushes partial units and releases
// per-stage state.
//
// Stages are not safe for concurrent use.
package transform

// State is the lifecycle state of a Stage.
type State int32

const (
	// StateInit is a freshly created stage.
	StateInit State = iota + 1
	// StateFeeding is a stage that has accepted data.
	StateFeeding
	// StateDone is a finalized stage.
	StateDone
	// StateError is a stage whose last feed failed. Only Finalize is legal.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFeeding:
		return "feeding"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Emit forwards output produced by a codec. The slice is only valid for the
// duration of the call.
type Emit func(p []byte) error

// Codec is the stage-private transformation behind a Stage.
type Codec interface {
	// Encode consumes p and passes zero or more complete output units to emit,
	// buffering any incomplete unit.
	Encode(p []byte, emit Emit) error
	// End flushes buffered output through emit and releases codec resources.
	End(emit Emit) error
	// RequiresNext reports whether the codec must have a downstream stage.
	RequiresNext() bool
}

// Stage is one link of a pipeline.
type Stage struct {
	codec Codec
	next  *Stage
	state State
}

// NewStage creates a stage running codec and forwarding to next. The stage
// does not take ownership of next; finalizing a stage leaves next untouched.
func NewStage(codec Codec, next *Stage) (*Stage, error) {
	if codec == nil {
		return nil, ErrParam
	}
	if next != nil && !next.accepting() {
		return nil, ErrNextStageMissing
	}
	if next == nil && codec.RequiresNext() {
		return nil, ErrNextStageMissing
	}
	return &Stage{
		codec: codec,
		next:  next,
		state: StateInit,
	}, nil
}

// State returns the stage state.
func (s *Stage) State() State {
	return s.state
}

// Next returns the downstream stage, or nil for a terminal stage.
func (s *Stage) Next() *Stage {
	return s.next
}

// Codec returns the codec driven by this stage.
func (s *Stage) Codec() Codec {
	return s.codec
}

// Feed transforms p and forwards the output downstream. A failed feed moves
// the stage to StateError; after that only Finalize is legal.
func (s *Stage) Feed(p []byte) error {
	if s == nil || s.codec == nil {
		return ErrParam
	}
	if !s.accepting() {
		return ErrState
	}
	if err := s.codec.Encode(p, s.forward); err != nil {
		s.state = StateError
		return err
	}
	s.state = StateFeeding
	return nil
}

// Finalize flushes buffered output, releases codec state and moves the stage
// to StateDone. From StateError it only cleans up and reports success, since
// the failure was already returned by Feed. Finalizing twice fails ErrState.
func (s *Stage) Finalize() error {
	if s == nil || s.codec == nil {
		return ErrParam
	}
	switch s.state {
	case StateError:
		_ = s.codec.End(discard)
		s.state = StateDone
		return nil
	case StateInit, StateFeeding:
		err := s.codec.End(s.forward)
		s.state = StateDone
		return err
	default:
		return ErrState
	}
}

// FinalizeAll finalizes head and every stage after it, regardless of
// individual failures, and returns the first error seen.
func FinalizeAll(head *Stage) error {
	var first error
	for s := head; s != nil; s = s.next {
		if err := s.Finalize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Stage) accepting() bool {
	return s.state == StateInit || s.state == StateFeeding
}

func (s *Stage) forward(p []byte) error {
	if s.next == nil || len(p) == 0 {
		return nil
	}
	return s.next.Feed(p)
}

func discard([]byte) error { return nil }
