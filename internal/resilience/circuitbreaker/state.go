package circuitbreaker

import "time"

// State represents the current state of a circuit.
type State int

const (
	// StateClosed indicates the circuit is closed and executions pass through.
	// This is the normal operating state.
	StateClosed State = iota

	// StateOpen indicates the circuit is open due to excessive failures.
	// Executions are rejected immediately until the next-attempt timestamp.
	StateOpen

	// StateHalfOpen indicates the circuit is testing recovery.
	// A bounded number of probe executions are allowed through.
	StateHalfOpen
)

// String returns the wire representation of the state. This string is what
// gets written to the shared fault state store, so it must stay stable across
// service versions running concurrently.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ParseState converts a wire representation back to a State.
// Unknown or empty values parse as StateClosed: a replica reading a missing
// or unrecognized record must treat the circuit as closed, not as an error.
func ParseState(raw string) State {
	switch raw {
	case "open":
		return StateOpen
	case "half-open":
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Snapshot is a point-in-time view of one circuit's shared state.
//
// Failures is meaningful in the closed and half-open states; Successes only
// while half-open. A zero NextAttempt on an open circuit means the hold
// period has lapsed (the store record expired) and the next call may probe.
type Snapshot struct {
	State       State
	Failures    int64
	Successes   int64
	NextAttempt time.Time
	LastFailure string
}
