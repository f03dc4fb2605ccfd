package retry

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		Classify:     RetryUnlessCanceled,
	}
}

func TestWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("element not visible")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_ExhaustsAttempts(t *testing.T) {
	workErr := errors.New("element never appeared")
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return workErr
	})
	assert.ErrorIs(t, err, workErr)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_NonRetryableAbortsImmediately(t *testing.T) {
	cfg := fastConfig()
	cfg.Classify = IsRetryable

	calls := 0
	err := WithBackoff(context.Background(), cfg, func() error {
		calls++
		return errors.New("selector syntax error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "unclassified errors must not be retried")
}

func TestWithBackoff_ContextCancellationAborts(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := WithBackoff(ctx, cfg, func() error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second, "must not wait out the full delay")
}

func TestNextDelay_LinearGrowth(t *testing.T) {
	cfg := Config{Increment: 500 * time.Millisecond, MaxDelay: 2 * time.Second}

	d := nextDelay(500*time.Millisecond, cfg)
	assert.Equal(t, time.Second, d)
	d = nextDelay(d, cfg)
	assert.Equal(t, 1500*time.Millisecond, d)

	// Caps at MaxDelay.
	d = nextDelay(2*time.Second, cfg)
	assert.Equal(t, 2*time.Second, d)
}

func TestNextDelay_ExponentialGrowth(t *testing.T) {
	cfg := Config{Multiplier: 2.0, MaxDelay: time.Minute}
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, cfg))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"http 500", &HTTPError{StatusCode: 500, Message: "boom"}, true},
		{"http 429", &HTTPError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}, true},
		{"http 404", &HTTPError{StatusCode: 404, Message: "missing"}, false},
		{"plain error", errors.New("whatever"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetryUnlessCanceled(t *testing.T) {
	assert.False(t, RetryUnlessCanceled(nil))
	assert.False(t, RetryUnlessCanceled(context.Canceled))
	assert.False(t, RetryUnlessCanceled(context.DeadlineExceeded))
	assert.True(t, RetryUnlessCanceled(errors.New("element not visible")))
}

func TestUIStepConfig(t *testing.T) {
	cfg := UIStepConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.NotNil(t, cfg.Classify)
	assert.Greater(t, cfg.Increment, time.Duration(0))
}
