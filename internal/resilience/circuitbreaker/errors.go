package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrOpen is the sentinel matched by errors.Is when a call is rejected
// because the circuit is open. The wrapped work never ran.
var ErrOpen = errors.New("circuit breaker is open")

// ErrTimeout is the sentinel matched by errors.Is when the wrapped work was
// abandoned after exceeding the circuit's execution budget.
var ErrTimeout = errors.New("circuit breaker timeout exceeded")

// ErrUnknownCircuit is returned by the registry for operation names that
// were never registered at the composition root.
var ErrUnknownCircuit = errors.New("unknown circuit")

// OpenError is returned when an execution is rejected without running.
// NextAttempt tells the caller when a retry may be allowed through as a
// probe; LastFailure carries the last recorded error for diagnostics.
type OpenError struct {
	Circuit     string
	NextAttempt time.Time
	LastFailure string
}

func (e *OpenError) Error() string {
	if e.LastFailure != "" {
		return fmt.Sprintf("circuit %q is open until %s (last failure: %s)",
			e.Circuit, e.NextAttempt.Format(time.RFC3339), e.LastFailure)
	}
	return fmt.Sprintf("circuit %q is open until %s", e.Circuit, e.NextAttempt.Format(time.RFC3339))
}

func (e *OpenError) Unwrap() error { return ErrOpen }

// TimeoutError is returned when the wrapped work exceeded its budget and was
// abandoned. It counts toward the circuit's failure threshold exactly once.
type TimeoutError struct {
	Circuit string
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("circuit %q: execution exceeded %s budget", e.Circuit, e.Budget)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
