package pipeline

import (
	"fmt"

	"walkeryt/internal/runstore"
)

// State is a run's position in the pipeline state machine.
type State string

const (
	StateIdle       State = "idle"
	StateSplitting  State = "splitting"
	StateSeparating State = "separating"
	StateReady      State = "ready"
	StateStreaming  State = "streaming"
	StateFinished   State = "finished"
	StateError      State = "error"
)

var transitions = map[State][]State{
	StateIdle:       {StateSplitting},
	StateSplitting:  {StateSeparating, StateError},
	StateSeparating: {StateSeparating, StateReady, StateFinished, StateError},
	StateReady:      {StateStreaming, StateFinished, StateError},
	StateStreaming:  {StateFinished, StateError},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateError
}

// StoreStatus maps the state onto the persisted run status. Terminal states
// are finalised separately because their status depends on the failure.
func (s State) StoreStatus() runstore.Status {
	switch s {
	case StateSplitting:
		return runstore.StatusSplitting
	case StateSeparating:
		return runstore.StatusSeparating
	case StateReady:
		return runstore.StatusReady
	case StateStreaming:
		return runstore.StatusStreaming
	case StateFinished:
		return runstore.StatusFinished
	case StateError:
		return runstore.StatusFailed
	default:
		return runstore.StatusPending
	}
}

type transitionError struct {
	from, to State
}

func (e transitionError) Error() string {
	return fmt.Sprintf("invalid run transition %s -> %s", e.from, e.to)
}
