package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderpilot/internal/infra/browserpool"
	"orderpilot/internal/resilience/circuitbreaker"
)

type fakeEngine struct {
	mu     sync.Mutex
	closed bool
}

func (e *fakeEngine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

func (e *fakeEngine) Reset(ctx context.Context) error { return nil }

func (e *fakeEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

type fakeLauncher struct {
	launches atomic.Int64
}

func (l *fakeLauncher) Launch(ctx context.Context) (browserpool.Engine, error) {
	l.launches.Add(1)
	return &fakeEngine{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, circuit circuitbreaker.Config) (*Executor, *fakeLauncher) {
	t.Helper()

	logger := discardLogger()
	launcher := &fakeLauncher{}
	pool := browserpool.New(browserpool.Config{
		MinInstances:      1,
		MaxInstances:      2,
		LaunchesPerMinute: 6000,
		LaunchBurst:       100,
	}, launcher, logger)
	require.NoError(t, pool.Initialize(context.Background()))

	registry := circuitbreaker.NewRegistry(circuitbreaker.NewMemoryStore(circuitbreaker.DefaultTTLs()), logger)
	_, err := registry.Register(circuit)
	require.NoError(t, err)

	return NewExecutor(pool, registry, logger), launcher
}

func TestRunProtected_LeasesAndReleases(t *testing.T) {
	exec, _ := newTestExecutor(t, circuitbreaker.DefaultConfig("checkout"))

	result, err := exec.RunProtected(context.Background(), "checkout",
		func(ctx context.Context, inst *browserpool.Instance) (interface{}, error) {
			assert.NotNil(t, inst)
			assert.Equal(t, 1, exec.Pool().Stats().InUse)
			return "done", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 0, exec.Pool().Stats().InUse)
}

func TestRunProtected_ReleasesOnWorkError(t *testing.T) {
	exec, _ := newTestExecutor(t, circuitbreaker.DefaultConfig("checkout"))

	boom := errors.New("selector never appeared")
	_, err := exec.RunProtected(context.Background(), "checkout",
		func(ctx context.Context, inst *browserpool.Instance) (interface{}, error) {
			return nil, boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, exec.Pool().Stats().InUse)
	assert.Equal(t, 1, exec.Pool().Stats().Available)
}

func TestRunProtected_OpenCircuitSkipsPool(t *testing.T) {
	cfg := circuitbreaker.Config{
		Name:             "checkout",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Second,
		ResetTimeout:     time.Minute,
	}
	exec, launcher := newTestExecutor(t, cfg)

	_, err := exec.RunProtected(context.Background(), "checkout",
		func(ctx context.Context, inst *browserpool.Instance) (interface{}, error) {
			return nil, errors.New("upstream down")
		})
	require.Error(t, err)
	launchesAfterTrip := launcher.launches.Load()

	var invoked atomic.Bool
	_, err = exec.RunProtected(context.Background(), "checkout",
		func(ctx context.Context, inst *browserpool.Instance) (interface{}, error) {
			invoked.Store(true)
			return nil, nil
		})

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, invoked.Load())
	assert.Equal(t, launchesAfterTrip, launcher.launches.Load())
	assert.Equal(t, 0, exec.Pool().Stats().InUse)
}

func TestRunProtected_UnknownCircuit(t *testing.T) {
	exec, _ := newTestExecutor(t, circuitbreaker.DefaultConfig("checkout"))

	_, err := exec.RunProtected(context.Background(), "no-such-circuit",
		func(ctx context.Context, inst *browserpool.Instance) (interface{}, error) {
			return nil, nil
		})

	assert.ErrorIs(t, err, circuitbreaker.ErrUnknownCircuit)
}

func TestRunGuarded_DoesNotTouchPool(t *testing.T) {
	exec, launcher := newTestExecutor(t, circuitbreaker.DefaultConfig("upload"))
	before := launcher.launches.Load()

	result, err := exec.RunGuarded(context.Background(), "upload",
		func(ctx context.Context) (interface{}, error) {
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, before, launcher.launches.Load())
}
