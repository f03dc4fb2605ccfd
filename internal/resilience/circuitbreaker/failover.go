package circuitbreaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"orderpilot/internal/observability/metrics"
)

// FailoverStore composes the shared store with a local in-process shadow.
//
// Every successful read refreshes the shadow with the canonical state; every
// mutation is applied to both. When the shared store is unreachable the
// shadow serves alone, degrading the breaker to per-replica independent
// behavior rather than failing open or hanging. Store errors never reach
// the caller.
//
// Round trips to the shared store are themselves guarded by a local
// gobreaker instance, so a dead store trips to the shadow quickly instead of
// paying the store timeout on every call. Once the guard's probe succeeds,
// the shared store is consulted again transparently.
type FailoverStore struct {
	primary StateStore
	shadow  *MemoryStore
	guard   *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewFailoverStore wraps a shared store with shadow-state failover.
func NewFailoverStore(primary StateStore, shadow *MemoryStore, logger *slog.Logger) *FailoverStore {
	settings := gobreaker.Settings{
		Name:        "fault-state-store",
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("fault state store guard changed state",
				slog.String("guard", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &FailoverStore{
		primary: primary,
		shadow:  shadow,
		guard:   gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Load implements StateStore. Successful reads refresh the shadow.
func (f *FailoverStore) Load(ctx context.Context, name string) (Snapshot, error) {
	v, err := f.guard.Execute(func() (interface{}, error) {
		return f.primary.Load(ctx, name)
	})
	if err != nil {
		f.fallback(name, "load", err)
		return f.shadow.Load(ctx, name)
	}
	snap := v.(Snapshot)
	f.shadow.setSnapshot(name, snap)
	return snap, nil
}

// SetState implements StateStore.
func (f *FailoverStore) SetState(ctx context.Context, name string, state State) error {
	_ = f.shadow.SetState(ctx, name, state)
	if err := f.execute(func() error { return f.primary.SetState(ctx, name, state) }); err != nil {
		f.fallback(name, "set_state", err)
	}
	return nil
}

// IncrFailures implements StateStore. The shared counter is authoritative
// when reachable; otherwise the shadow counter stands in.
func (f *FailoverStore) IncrFailures(ctx context.Context, name string) (int64, error) {
	v, err := f.guard.Execute(func() (interface{}, error) {
		return f.primary.IncrFailures(ctx, name)
	})
	if err != nil {
		f.fallback(name, "incr_failures", err)
		return f.shadow.IncrFailures(ctx, name)
	}
	count := v.(int64)
	f.shadow.syncFailures(name, count)
	return count, nil
}

// ResetFailures implements StateStore.
func (f *FailoverStore) ResetFailures(ctx context.Context, name string) error {
	_ = f.shadow.ResetFailures(ctx, name)
	if err := f.execute(func() error { return f.primary.ResetFailures(ctx, name) }); err != nil {
		f.fallback(name, "reset_failures", err)
	}
	return nil
}

// IncrSuccesses implements StateStore.
func (f *FailoverStore) IncrSuccesses(ctx context.Context, name string) (int64, error) {
	v, err := f.guard.Execute(func() (interface{}, error) {
		return f.primary.IncrSuccesses(ctx, name)
	})
	if err != nil {
		f.fallback(name, "incr_successes", err)
		return f.shadow.IncrSuccesses(ctx, name)
	}
	count := v.(int64)
	f.shadow.syncSuccesses(name, count)
	return count, nil
}

// ResetCounters implements StateStore.
func (f *FailoverStore) ResetCounters(ctx context.Context, name string) error {
	_ = f.shadow.ResetCounters(ctx, name)
	if err := f.execute(func() error { return f.primary.ResetCounters(ctx, name) }); err != nil {
		f.fallback(name, "reset_counters", err)
	}
	return nil
}

// SetNextAttempt implements StateStore.
func (f *FailoverStore) SetNextAttempt(ctx context.Context, name string, at time.Time) error {
	_ = f.shadow.SetNextAttempt(ctx, name, at)
	if err := f.execute(func() error { return f.primary.SetNextAttempt(ctx, name, at) }); err != nil {
		f.fallback(name, "set_next_attempt", err)
	}
	return nil
}

// SetLastFailure implements StateStore.
func (f *FailoverStore) SetLastFailure(ctx context.Context, name string, message string) error {
	_ = f.shadow.SetLastFailure(ctx, name, message)
	if err := f.execute(func() error { return f.primary.SetLastFailure(ctx, name, message) }); err != nil {
		f.fallback(name, "set_last_failure", err)
	}
	return nil
}

func (f *FailoverStore) execute(op func() error) error {
	_, err := f.guard.Execute(func() (interface{}, error) {
		return nil, op()
	})
	return err
}

func (f *FailoverStore) fallback(name, op string, err error) {
	metrics.RecordStoreFallback(name, op)
	f.logger.Warn("shared fault state store unreachable, using local shadow state",
		slog.String("circuit", name),
		slog.String("op", op),
		slog.Any("error", err))
}
