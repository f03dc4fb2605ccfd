package circuitbreaker

import (
	"context"
	"time"
)

// StateStore persists circuit state shared by every replica of the service.
//
// Implementations must be safe for concurrent use from any number of
// replicas: each mutation is a single atomic operation against the backing
// store, and every written record carries a bounded expiry so transient
// writes from a crashed replica cannot pin a circuit open or closed forever.
//
// Every method call is a potential network round trip and honors the
// supplied context.
type StateStore interface {
	// Load returns the current snapshot for the named circuit.
	// A circuit with no record reads as closed with zero counters.
	Load(ctx context.Context, name string) (Snapshot, error)

	// SetState records the circuit state with a bounded TTL.
	SetState(ctx context.Context, name string, state State) error

	// IncrFailures atomically increments the failure counter and returns
	// the new value. The counter expires on its own after a bounded window.
	IncrFailures(ctx context.Context, name string) (int64, error)

	// ResetFailures clears the failure counter.
	ResetFailures(ctx context.Context, name string) error

	// IncrSuccesses atomically increments the half-open probe success
	// counter and returns the new value.
	IncrSuccesses(ctx context.Context, name string) (int64, error)

	// ResetCounters clears both the failure and probe success counters.
	ResetCounters(ctx context.Context, name string) error

	// SetNextAttempt records the earliest time an open circuit admits a
	// probe. The record expires at that instant.
	SetNextAttempt(ctx context.Context, name string, at time.Time) error

	// SetLastFailure records an error summary for diagnostics.
	SetLastFailure(ctx context.Context, name string, message string) error
}

// TTLConfig bounds the lifetime of circuit records in the store.
// A quiet circuit returns to a clean closed state once these lapse,
// without any explicit reset.
type TTLConfig struct {
	// State bounds the state record itself.
	State time.Duration

	// Failures bounds the failure counter.
	Failures time.Duration

	// Successes bounds the half-open probe success counter.
	Successes time.Duration
}

// DefaultTTLs returns the TTL bounds used in production.
// These are part of the wire contract with other replicas: changing them
// changes how fast a quiet circuit decays back to closed.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		State:     30 * time.Minute,
		Failures:  5 * time.Minute,
		Successes: 1 * time.Minute,
	}
}
