package recorder

import (
	"errors"
	"fmt"
)

// ErrNoActiveRecorder is returned when a Variable or Operation is
// constructed without a started recorder in the context
var ErrNoActiveRecorder = errors.New("no active recording context")

// StateError reports an illegal recorder transition: starting a started
// recorder, stopping one that is not started, or an unbalanced subgraph or
// namespace stack
type StateError struct {
	// Op is the attempted transition
	Op string

	// State is the recorder state when the transition was attempted
	State State

	// Reason describes why the transition is illegal
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("recorder %s in state %s: %s", e.Op, e.State, e.Reason)
}
