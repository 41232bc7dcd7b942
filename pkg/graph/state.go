package graph

import (
	"fmt"
	"sync"
	"time"
)

// OpState represents the execution state of an operation during an
// execution pass
type OpState string

const (
	// OpStatePending indicates the operation is waiting for its inputs
	OpStatePending OpState = "Pending"

	// OpStateRunning indicates the operation is being evaluated
	OpStateRunning OpState = "Running"

	// OpStateDone indicates the operation produced its outputs
	OpStateDone OpState = "Done"

	// OpStateSkipped indicates an input never received a value
	OpStateSkipped OpState = "Skipped"

	// OpStateFailed indicates the kernel returned an error
	OpStateFailed OpState = "Failed"
)

// OpStatus contains the execution status of a single operation
type OpStatus struct {
	// State is the current state of the operation
	State OpState

	// Error contains the error message if State is OpStateFailed
	Error string

	// Reason explains why the operation was skipped
	Reason string

	// StartTime is when the operation started running
	StartTime *time.Time

	// EndTime is when the operation finished
	EndTime *time.Time
}

// ExecutionState tracks the execution state of all operations of a graph
type ExecutionState struct {
	mu sync.RWMutex

	// opStates maps operation handle to its current status
	opStates map[NodeID]*OpStatus

	// startTime is when execution started
	startTime time.Time

	// endTime is when execution completed
	endTime *time.Time
}

// NewExecutionState creates a new execution state tracker
func NewExecutionState(opIDs []NodeID) *ExecutionState {
	states := make(map[NodeID]*OpStatus, len(opIDs))
	for _, id := range opIDs {
		states[id] = &OpStatus{
			State: OpStatePending,
		}
	}

	return &ExecutionState{
		opStates:  states,
		startTime: time.Now(),
	}
}

// GetState returns the current state of an operation
func (es *ExecutionState) GetState(id NodeID) (OpState, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	status, found := es.opStates[id]
	if !found {
		return "", fmt.Errorf("operation %d not found", id)
	}
	return status.State, nil
}

// GetStatus returns the full status of an operation
func (es *ExecutionState) GetStatus(id NodeID) (*OpStatus, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	status, found := es.opStates[id]
	if !found {
		return nil, fmt.Errorf("operation %d not found", id)
	}

	// Return a copy to prevent external modification
	statusCopy := *status
	return &statusCopy, nil
}

// SetState updates the state of an operation with validation
func (es *ExecutionState) SetState(id NodeID, newState OpState) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	status, found := es.opStates[id]
	if !found {
		return fmt.Errorf("operation %d not found", id)
	}

	if err := validateStateTransition(status.State, newState); err != nil {
		return fmt.Errorf("invalid state transition for operation %d: %w", id, err)
	}

	status.State = newState

	now := time.Now()
	switch newState {
	case OpStateRunning:
		status.StartTime = &now
	case OpStateDone, OpStateFailed, OpStateSkipped:
		status.EndTime = &now
	}

	return nil
}

// SetFailed moves a running operation to the failed state
func (es *ExecutionState) SetFailed(id NodeID, err error) error {
	if serr := es.SetState(id, OpStateFailed); serr != nil {
		return serr
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	es.opStates[id].Error = err.Error()
	return nil
}

// SetSkipped moves a pending operation to the skipped state
func (es *ExecutionState) SetSkipped(id NodeID, reason string) error {
	if err := es.SetState(id, OpStateSkipped); err != nil {
		return err
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	es.opStates[id].Reason = reason
	return nil
}

// GetOpsInState returns all operation handles in a given state
func (es *ExecutionState) GetOpsInState(state OpState) []NodeID {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var ids []NodeID
	for id, status := range es.opStates {
		if status.State == state {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsComplete returns true if all operations are in a terminal state
func (es *ExecutionState) IsComplete() bool {
	es.mu.RLock()
	defer es.mu.RUnlock()

	for _, status := range es.opStates {
		if !status.State.terminal() {
			return false
		}
	}
	return true
}

// HasErrors returns true if any operation failed
func (es *ExecutionState) HasErrors() bool {
	es.mu.RLock()
	defer es.mu.RUnlock()

	for _, status := range es.opStates {
		if status.State == OpStateFailed {
			return true
		}
	}
	return false
}

// GetSummary returns a summary of execution state
func (es *ExecutionState) GetSummary() ExecutionSummary {
	es.mu.RLock()
	defer es.mu.RUnlock()

	summary := ExecutionSummary{
		Total:     len(es.opStates),
		StartTime: es.startTime,
		EndTime:   es.endTime,
	}

	for _, status := range es.opStates {
		switch status.State {
		case OpStatePending:
			summary.Pending++
		case OpStateRunning:
			summary.Running++
		case OpStateDone:
			summary.Done++
		case OpStateSkipped:
			summary.Skipped++
		case OpStateFailed:
			summary.Failed++
		}
	}

	return summary
}

// MarkComplete marks the execution as complete
func (es *ExecutionState) MarkComplete() {
	es.mu.Lock()
	defer es.mu.Unlock()

	now := time.Now()
	es.endTime = &now
}

// ExecutionSummary provides a summary of execution state
type ExecutionSummary struct {
	Total     int
	Pending   int
	Running   int
	Done      int
	Skipped   int
	Failed    int
	StartTime time.Time
	EndTime   *time.Time
}

func (s OpState) terminal() bool {
	return s == OpStateDone || s == OpStateSkipped || s == OpStateFailed
}

// validateStateTransition checks if a state transition is valid
func validateStateTransition(from, to OpState) error {
	validTransitions := map[OpState][]OpState{
		OpStatePending: {
			OpStateRunning,
			OpStateSkipped,
		},
		OpStateRunning: {
			OpStateDone,
			OpStateSkipped, // An input turned out to be missing
			OpStateFailed,
		},
		OpStateDone:    {},
		OpStateSkipped: {},
		OpStateFailed:  {},
	}

	allowed, found := validTransitions[from]
	if !found {
		return fmt.Errorf("unknown state: %s", from)
	}

	for _, allowedState := range allowed {
		if allowedState == to {
			return nil
		}
	}

	return fmt.Errorf("cannot transition from %s to %s", from, to)
}
