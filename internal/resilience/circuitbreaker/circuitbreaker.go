// Package circuitbreaker provides a distributed circuit breaker whose state
// is shared across service replicas through an external key-value store.
//
// One circuit exists per logical protected operation (the browser workflow,
// the artifact upload path). All replicas consult and mutate the same record,
// so N replicas observing the same systemic outage open their circuits
// together instead of each one independently leaking failures up to its own
// threshold. When the shared store is unreachable every replica degrades to
// an in-process shadow of the same state machine.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"orderpilot/internal/observability/metrics"
)

// Config holds the configuration for one circuit.
type Config struct {
	// Name identifies the protected operation. It doubles as the key the
	// shared store records are filed under.
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of half-open probe successes that
	// closes the circuit again. Default: 2
	SuccessThreshold int

	// Timeout is the hard budget for a single protected execution.
	// Work still running when it fires is abandoned and counted as a
	// failure. Default: 30 seconds
	Timeout time.Duration

	// ResetTimeout is how long an open circuit rejects calls before the
	// next call is allowed through as a probe. Default: 60 seconds
	ResetTimeout time.Duration
}

// DefaultConfig returns a default configuration for circuits.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
	}
}

// BrowserWorkflowConfig returns configuration for the browser automation
// workflow. Single browser operations are naturally slower and noisier, so
// the threshold, budget, and reset are all more generous.
func BrowserWorkflowConfig() Config {
	return Config{
		Name:             "browser-workflow",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		ResetTimeout:     120 * time.Second,
	}
}

// ArtifactUploadConfig returns configuration for the binary-object upload
// path. Uploads are cheap to retry and should fail fast.
func ArtifactUploadConfig() Config {
	return Config{
		Name:             "artifact-upload",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker is the per-operation circuit state machine. All state lives in the
// StateStore; the Breaker itself is stateless and safe for concurrent use
// from any number of goroutines.
type Breaker struct {
	name   string
	cfg    Config
	store  StateStore
	logger *slog.Logger

	// now is overridable for tests.
	now func() time.Time
}

// New creates a circuit breaker over the given state store.
// Zero config fields are filled from DefaultConfig.
func New(cfg Config, store StateStore, logger *slog.Logger) *Breaker {
	def := DefaultConfig(cfg.Name)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}

	return &Breaker{
		name:   cfg.Name,
		cfg:    cfg,
		store:  store,
		logger: logger.With(slog.String("circuit", cfg.Name)),
		now:    time.Now,
	}
}

// Name returns the circuit's operation name.
func (b *Breaker) Name() string { return b.name }

// Config returns the circuit's effective configuration.
func (b *Breaker) Config() Config { return b.cfg }

// Execute runs fn under circuit protection.
//
// If the circuit is open and the hold period has not lapsed, fn never runs
// and an *OpenError is returned. Otherwise fn runs under the circuit's hard
// timeout; work exceeding it is abandoned via context cancellation and
// reported as a *TimeoutError. Any failure is recorded against the shared
// state and then returned to the caller unmodified: the breaker never
// swallows the real cause.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	snap, err := b.store.Load(ctx, b.name)
	if err != nil {
		// The failover store absorbs outages; an error here means even
		// the shadow failed, which has no recovery path. Fail closed
		// (permissive) and let the execution outcome drive state.
		b.logger.Warn("loading circuit state failed, assuming closed", slog.Any("error", err))
		snap = Snapshot{State: StateClosed}
	}

	state := snap.State
	if state == StateOpen {
		if !snap.NextAttempt.IsZero() && b.now().Before(snap.NextAttempt) {
			metrics.RecordCircuitRejection(b.name)
			return nil, &OpenError{
				Circuit:     b.name,
				NextAttempt: snap.NextAttempt,
				LastFailure: snap.LastFailure,
			}
		}
		// Hold period lapsed: this call becomes the probe.
		b.transition(ctx, StateOpen, StateHalfOpen)
		_ = b.store.ResetCounters(ctx, b.name)
		state = StateHalfOpen
		snap.Successes = 0
	}

	if state == StateHalfOpen && snap.Successes >= int64(b.cfg.SuccessThreshold) {
		// The probe budget is spent; a concurrent probe's success is
		// about to close the circuit. Reject instead of piling more
		// traffic onto a dependency still proving itself.
		metrics.RecordCircuitRejection(b.name)
		return nil, &OpenError{
			Circuit:     b.name,
			NextAttempt: snap.NextAttempt,
			LastFailure: snap.LastFailure,
		}
	}

	result, err := b.run(ctx, fn)
	if err != nil {
		b.recordFailure(ctx, state, err)
		return nil, err
	}

	b.recordSuccess(ctx, state)
	return result, nil
}

// Status returns the circuit's current shared state for health reporting.
func (b *Breaker) Status(ctx context.Context) Status {
	snap, err := b.store.Load(ctx, b.name)
	if err != nil {
		snap = Snapshot{State: StateClosed}
	}

	st := Status{
		Circuit:     b.name,
		State:       snap.State.String(),
		Failures:    snap.Failures,
		Successes:   snap.Successes,
		LastFailure: snap.LastFailure,
		Config: StatusConfig{
			FailureThreshold: b.cfg.FailureThreshold,
			SuccessThreshold: b.cfg.SuccessThreshold,
			Timeout:          b.cfg.Timeout.String(),
			ResetTimeout:     b.cfg.ResetTimeout.String(),
		},
	}
	if !snap.NextAttempt.IsZero() {
		st.NextAttempt = &snap.NextAttempt
	}
	return st
}

// State returns the circuit's current shared state.
func (b *Breaker) State(ctx context.Context) State {
	snap, err := b.store.Load(ctx, b.name)
	if err != nil {
		return StateClosed
	}
	return snap.State
}

// Status is the read-only view of one circuit exposed to health tooling.
type Status struct {
	Circuit     string       `json:"circuit"`
	State       string       `json:"state"`
	Failures    int64        `json:"failures"`
	Successes   int64        `json:"successes,omitempty"`
	NextAttempt *time.Time   `json:"next_attempt,omitempty"`
	LastFailure string       `json:"last_failure,omitempty"`
	Config      StatusConfig `json:"config"`
}

// StatusConfig echoes the circuit's thresholds in the status payload.
type StatusConfig struct {
	FailureThreshold int    `json:"failure_threshold"`
	SuccessThreshold int    `json:"success_threshold"`
	Timeout          string `json:"timeout"`
	ResetTimeout     string `json:"reset_timeout"`
}

// run executes fn under the circuit's hard timeout. On expiry the derived
// context is cancelled so the work is actively abandoned, not just no longer
// awaited; the work must honor its context for resources not to leak.
func (b *Breaker) run(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	runCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		value, err := fn(runCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Circuit: b.name, Budget: b.cfg.Timeout}
		}
		// The caller's own context ended; propagate its error untouched.
		return nil, ctx.Err()
	}
}

func (b *Breaker) recordFailure(ctx context.Context, stateAtEntry State, err error) {
	metrics.RecordCircuitFailure(b.name)
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		metrics.RecordCircuitTimeout(b.name)
	}
	_ = b.store.SetLastFailure(ctx, b.name, err.Error())

	if stateAtEntry == StateHalfOpen {
		// A single failed probe re-opens immediately so a still-unhealthy
		// dependency is not hammered by further probes.
		b.open(ctx, StateHalfOpen, err)
		return
	}

	failures, ferr := b.store.IncrFailures(ctx, b.name)
	if ferr != nil {
		b.logger.Warn("incrementing failure counter failed", slog.Any("error", ferr))
		return
	}
	if failures >= int64(b.cfg.FailureThreshold) {
		b.open(ctx, StateClosed, err)
		return
	}

	b.logger.Warn("protected execution failed",
		slog.Int64("failures", failures),
		slog.Int("failure_threshold", b.cfg.FailureThreshold),
		slog.Any("error", err))
}

func (b *Breaker) recordSuccess(ctx context.Context, stateAtEntry State) {
	if stateAtEntry == StateHalfOpen {
		successes, err := b.store.IncrSuccesses(ctx, b.name)
		if err != nil {
			b.logger.Warn("incrementing success counter failed", slog.Any("error", err))
			return
		}
		b.logger.Info("probe succeeded",
			slog.Int64("successes", successes),
			slog.Int("success_threshold", b.cfg.SuccessThreshold))
		if successes >= int64(b.cfg.SuccessThreshold) {
			b.transition(ctx, StateHalfOpen, StateClosed)
			_ = b.store.ResetCounters(ctx, b.name)
		}
		return
	}

	// Each success in the closed state resets the consecutive failure run.
	_ = b.store.ResetFailures(ctx, b.name)
}

// open transitions the circuit to open and stamps the next-attempt time.
func (b *Breaker) open(ctx context.Context, from State, cause error) {
	nextAttempt := b.now().Add(b.cfg.ResetTimeout)
	_ = b.store.SetNextAttempt(ctx, b.name, nextAttempt)
	b.transition(ctx, from, StateOpen)

	b.logger.Error("circuit opened",
		slog.Time("next_attempt", nextAttempt),
		slog.Any("error", cause))
}

// transition writes the new state and records the change.
func (b *Breaker) transition(ctx context.Context, from, to State) {
	_ = b.store.SetState(ctx, b.name, to)
	metrics.RecordCircuitTransition(b.name, from.String(), to.String())
	metrics.RecordCircuitState(b.name, float64(to))

	b.logger.Warn("circuit state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()))
}
