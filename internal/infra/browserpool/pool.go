// Package browserpool manages a bounded pool of expensive automation-engine
// instances. It minimizes cold-start cost by reuse, retires instances by age
// and usage at release time, and self-heals back to its configured minimum.
package browserpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"orderpilot/internal/observability/metrics"
)

// ErrLaunchFailed is the sentinel matched by errors.Is when a new engine
// could not be started.
var ErrLaunchFailed = errors.New("launching instance failed")

// closeTimeout bounds the termination of a single engine process.
const closeTimeout = 10 * time.Second

// Pool owns a bounded collection of engine instances.
//
// At any time an instance is in exactly one of three conditions: idle (held
// in the pool), in use (leased to exactly one caller), or retired (destroyed,
// never re-issued). Pool methods are safe for concurrent use from
// arbitrarily many goroutines.
type Pool struct {
	cfg      Config
	launcher Launcher
	logger   *slog.Logger
	limiter  *rate.Limiter

	// now is overridable for tests.
	now func() time.Time

	mu    sync.Mutex
	idle  []*Instance
	inUse map[string]*Instance
	// pending counts launches and resets in flight; they hold a capacity
	// slot so concurrent acquires can never overshoot MaxInstances.
	pending int
	// wake is closed and replaced to broadcast that capacity was freed.
	wake chan struct{}
}

// New creates a pool over the given launcher. Zero config fields fall back
// to defaults. The pool starts empty; call Initialize to pre-warm it.
func New(cfg Config, launcher Launcher, logger *slog.Logger) *Pool {
	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.LaunchesPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LaunchesPerMinute/60.0), cfg.LaunchBurst)
	}

	return &Pool{
		cfg:      cfg,
		launcher: launcher,
		logger:   logger,
		limiter:  limiter,
		now:      time.Now,
		inUse:    make(map[string]*Instance),
		wake:     make(chan struct{}),
	}
}

// Initialize brings the pool up to its minimum instance count, launching
// concurrently. It fails loudly if the engine cannot be started; callers may
// choose to continue running with zero capacity and let Acquire create
// instances on demand.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	need := p.cfg.MinInstances - p.totalLocked()
	if need <= 0 {
		p.mu.Unlock()
		return nil
	}
	p.pending += need
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < need; i++ {
		g.Go(func() error {
			inst, err := p.launch(gctx)
			p.mu.Lock()
			p.pending--
			if err == nil {
				p.idle = append(p.idle, inst)
			}
			p.mu.Unlock()
			if err != nil {
				return err
			}
			p.broadcast()
			return nil
		})
	}

	err := g.Wait()
	p.updateGauges()
	if err != nil {
		return fmt.Errorf("initialize pool: %w", err)
	}
	return nil
}

// Acquire returns an idle instance, creates one if the pool is below its
// maximum, or blocks until a release frees capacity. It never hands out a
// dead instance: an idle instance failing its liveness check is discarded
// and replaced transparently.
//
// Acquire has no intrinsic timeout; callers bound their wait through ctx
// (in practice, the circuit breaker's execution budget).
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	start := time.Now()
	defer func() { metrics.RecordAcquireWait(time.Since(start)) }()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.Lock()

		// Prefer reuse: newest idle instance first.
		for len(p.idle) > 0 {
			n := len(p.idle) - 1
			inst := p.idle[n]
			p.idle = p.idle[:n]

			if inst.engine.Connected() {
				p.checkoutLocked(inst)
				p.mu.Unlock()
				p.updateGauges()
				return inst, nil
			}

			p.mu.Unlock()
			p.destroy(ctx, inst, "dead")
			p.mu.Lock()
		}

		if p.totalLocked() < p.cfg.MaxInstances {
			p.pending++
			p.mu.Unlock()

			inst, err := p.launch(ctx)

			p.mu.Lock()
			p.pending--
			if err != nil {
				p.mu.Unlock()
				p.broadcast()
				return nil, err
			}
			p.checkoutLocked(inst)
			p.mu.Unlock()
			p.updateGauges()
			return inst, nil
		}

		// Pool exhausted: wait for a release to broadcast freed capacity.
		wake := p.wake
		p.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a leased instance to the pool. The retirement policy is
// evaluated here and only here: an instance past its age or usage budget, or
// no longer connected, is destroyed and the pool replenishes to its minimum
// before the release completes. Releasing an instance the pool does not own
// is a logged no-op, never a crash.
func (p *Pool) Release(inst *Instance) {
	if inst == nil {
		p.logger.Warn("release of nil instance ignored")
		return
	}

	p.mu.Lock()
	if _, owned := p.inUse[inst.id]; !owned {
		p.mu.Unlock()
		p.logger.Warn("release of instance not owned by pool",
			slog.String("instance_id", inst.id))
		return
	}
	delete(p.inUse, inst.id)

	reason := p.retirementReasonLocked(inst)
	if reason == "" {
		// Hold the capacity slot while the engine resets off-lock.
		p.pending++
	}
	p.mu.Unlock()

	ctx := context.Background()

	if reason != "" {
		p.destroy(ctx, inst, reason)
		p.ensureMin(ctx)
		p.updateGauges()
		p.broadcast()
		return
	}

	if err := inst.engine.Reset(ctx); err != nil {
		p.logger.Warn("instance reset failed, retiring",
			slog.String("instance_id", inst.id),
			slog.Any("error", err))
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
		p.destroy(ctx, inst, "dead")
		p.ensureMin(ctx)
		p.updateGauges()
		p.broadcast()
		return
	}

	p.mu.Lock()
	p.pending--
	p.idle = append(p.idle, inst)
	p.mu.Unlock()
	p.updateGauges()
	p.broadcast()
}

// Shutdown terminates every instance, idle and in use, best-effort, and
// clears all bookkeeping. A subsequent Acquire re-initializes from empty.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	instances := append([]*Instance{}, p.idle...)
	for _, inst := range p.inUse {
		instances = append(instances, inst)
	}
	p.idle = nil
	p.inUse = make(map[string]*Instance)
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, inst := range instances {
		inst := inst
		g.Go(func() error {
			closeCtx, cancel := context.WithTimeout(gctx, closeTimeout)
			defer cancel()
			if err := inst.engine.Close(closeCtx); err != nil {
				p.logger.Warn("closing instance during shutdown failed",
					slog.String("instance_id", inst.id),
					slog.Any("error", err))
			}
			metrics.RecordInstanceRetired("shutdown")
			return nil
		})
	}
	_ = g.Wait()

	p.updateGauges()
	p.broadcast()
	p.logger.Info("pool shut down", slog.Int("instances_closed", len(instances)))
}

// launch starts a new engine, subject to the launch throttle.
func (p *Pool) launch(ctx context.Context) (*Instance, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	engine, err := p.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	now := p.now()
	inst := &Instance{
		id:         uuid.NewString(),
		engine:     engine,
		createdAt:  now,
		lastUsedAt: now,
	}
	metrics.RecordInstanceCreated()
	p.logger.Info("instance launched", slog.String("instance_id", inst.id))
	return inst, nil
}

// ensureMin replenishes the pool to its minimum, synchronously, so the next
// Acquire finds the capacity already restored. Launch failures are logged
// and abandoned; liveness checks catch the shortfall later.
func (p *Pool) ensureMin(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.totalLocked() >= p.cfg.MinInstances {
			p.mu.Unlock()
			return
		}
		p.pending++
		p.mu.Unlock()

		inst, err := p.launch(ctx)

		p.mu.Lock()
		p.pending--
		if err != nil {
			p.mu.Unlock()
			p.logger.Error("replenishing pool to minimum failed", slog.Any("error", err))
			return
		}
		p.idle = append(p.idle, inst)
		p.mu.Unlock()
		p.broadcast()
	}
}

// destroy terminates an engine and records the retirement.
func (p *Pool) destroy(ctx context.Context, inst *Instance, reason string) {
	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()

	if err := inst.engine.Close(closeCtx); err != nil {
		p.logger.Warn("closing instance failed",
			slog.String("instance_id", inst.id),
			slog.Any("error", err))
	}
	metrics.RecordInstanceRetired(reason)
	p.logger.Info("instance retired",
		slog.String("instance_id", inst.id),
		slog.String("reason", reason),
		slog.Int("usage_count", inst.usageCount))
}

// retirementReasonLocked evaluates the retirement policy. Caller holds mu.
func (p *Pool) retirementReasonLocked(inst *Instance) string {
	if !inst.engine.Connected() {
		return "dead"
	}
	if p.now().Sub(inst.createdAt) >= p.cfg.MaxInstanceAge {
		return "age"
	}
	if inst.usageCount >= p.cfg.MaxUsageCount {
		return "usage"
	}
	return ""
}

// checkoutLocked moves an instance into the in-use set. Caller holds mu.
func (p *Pool) checkoutLocked(inst *Instance) {
	inst.usageCount++
	inst.lastUsedAt = p.now()
	p.inUse[inst.id] = inst
}

// totalLocked counts every instance the pool is accountable for, including
// launches and resets in flight. Caller holds mu.
func (p *Pool) totalLocked() int {
	return len(p.idle) + len(p.inUse) + p.pending
}

// broadcast wakes every goroutine blocked in Acquire.
func (p *Pool) broadcast() {
	p.mu.Lock()
	close(p.wake)
	p.wake = make(chan struct{})
	p.mu.Unlock()
}

func (p *Pool) updateGauges() {
	p.mu.Lock()
	available, inUse := len(p.idle), len(p.inUse)
	p.mu.Unlock()
	metrics.UpdatePoolGauges(available, inUse)
}
