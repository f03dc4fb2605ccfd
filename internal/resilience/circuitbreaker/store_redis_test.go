package circuitbreaker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisStoreForTest connects to the Redis named by REDIS_ADDR, or skips.
// Each test gets a unique key prefix so concurrent runs cannot collide.
func redisStoreForTest(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	return NewRedisStore(client, RedisStoreConfig{
		KeyPrefix: "circuit-test-" + uuid.NewString(),
	})
}

func TestRedisStore_MissingCircuitReadsClosed(t *testing.T) {
	store := redisStoreForTest(t)

	snap, err := store.Load(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, snap.State)
	assert.Zero(t, snap.Failures)
	assert.True(t, snap.NextAttempt.IsZero())
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := redisStoreForTest(t)
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, "c", StateOpen))

	count, err := store.IncrFailures(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = store.IncrFailures(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	at := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	require.NoError(t, store.SetNextAttempt(ctx, "c", at))
	require.NoError(t, store.SetLastFailure(ctx, "c", "engine crashed"))

	snap, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, int64(2), snap.Failures)
	assert.Equal(t, at.UnixMilli(), snap.NextAttempt.UnixMilli())
	assert.Equal(t, "engine crashed", snap.LastFailure)
}

func TestRedisStore_ResetCounters(t *testing.T) {
	store := redisStoreForTest(t)
	ctx := context.Background()

	_, err := store.IncrFailures(ctx, "c")
	require.NoError(t, err)
	_, err = store.IncrSuccesses(ctx, "c")
	require.NoError(t, err)

	require.NoError(t, store.ResetCounters(ctx, "c"))

	snap, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, snap.Failures)
	assert.Zero(t, snap.Successes)
}

func TestRedisStore_PastNextAttemptClears(t *testing.T) {
	store := redisStoreForTest(t)
	ctx := context.Background()

	require.NoError(t, store.SetNextAttempt(ctx, "c", time.Now().Add(-time.Second)))

	snap, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.True(t, snap.NextAttempt.IsZero())
}
