// Package automation composes the circuit breaker layer with the engine pool
// into a single protected execution primitive for browser workflows.
package automation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"orderpilot/internal/infra/browserpool"
	"orderpilot/internal/observability/tracing"
	"orderpilot/internal/resilience/circuitbreaker"
)

// Work is a unit of browser automation executed against a leased instance.
type Work func(ctx context.Context, inst *browserpool.Instance) (interface{}, error)

// Executor runs workflows behind a named circuit with a pooled engine
// instance. The circuit is consulted before any pool capacity is touched, so
// a hard-down upstream sheds load without queueing acquires behind it.
type Executor struct {
	pool     *browserpool.Pool
	breakers *circuitbreaker.Registry
	logger   *slog.Logger
}

func NewExecutor(pool *browserpool.Pool, breakers *circuitbreaker.Registry, logger *slog.Logger) *Executor {
	return &Executor{pool: pool, breakers: breakers, logger: logger}
}

// RunProtected executes work under the named circuit with an instance leased
// for exactly the duration of the protected call. The instance is acquired
// inside the circuit's execution budget and released on every path, success
// or failure.
func (e *Executor) RunProtected(ctx context.Context, circuit string, work Work) (interface{}, error) {
	breaker, err := e.breakers.Get(circuit)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.GetTracer().Start(ctx, "automation.run_protected",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	return breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		inst, err := e.pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire instance: %w", err)
		}
		defer e.pool.Release(inst)

		e.logger.Debug("running protected work",
			slog.String("circuit", circuit),
			slog.String("instance_id", inst.ID()))
		return work(ctx, inst)
	})
}

// RunGuarded executes work under the named circuit without touching the
// pool. Used for side calls such as artifact uploads.
func (e *Executor) RunGuarded(ctx context.Context, circuit string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	breaker, err := e.breakers.Get(circuit)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.GetTracer().Start(ctx, "automation.run_guarded",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	return breaker.Execute(ctx, fn)
}

// Pool exposes the underlying pool for health and stats surfaces.
func (e *Executor) Pool() *browserpool.Pool { return e.pool }

// Breakers exposes the circuit registry for health and stats surfaces.
func (e *Executor) Breakers() *circuitbreaker.Registry { return e.breakers }
