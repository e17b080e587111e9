// File: api/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared API-level type declarations and constants.

package api

// State enumerates the lifecycle states of a connection session.
type State int

const (
	StateIdle State = iota
	StateReading
	StateDispatching
	StateWriting
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CanTransition reports whether the session state machine allows from -> to.
func CanTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateReading || to == StateClosing
	case StateReading:
		return to == StateDispatching || to == StateClosing
	case StateDispatching:
		return to == StateWriting || to == StateClosing
	case StateWriting:
		return to == StateReading || to == StateClosing
	case StateClosing:
		return to == StateTerminated
	}
	return false
}
