package circuitbreaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxLastFailureLen bounds the error summary written to the store.
const maxLastFailureLen = 512

// RedisStoreConfig holds configuration for the Redis-backed state store.
type RedisStoreConfig struct {
	// KeyPrefix namespaces circuit records, allowing multiple deployments
	// to share one Redis. Default: "circuit"
	KeyPrefix string

	// OpTimeout bounds every store round trip, independent of any
	// execution budget. Default: 2 seconds
	OpTimeout time.Duration

	// TTL bounds the lifetime of the written records.
	TTL TTLConfig
}

// RedisStore is the shared fault state store backed by Redis.
//
// One record exists per circuit name, spread over a handful of keys:
//
//	{prefix}:{name}:state        string enum, bounded TTL
//	{prefix}:{name}:failures     integer, TTL ~5 minutes
//	{prefix}:{name}:success      integer, TTL ~1 minute (half-open only)
//	{prefix}:{name}:next-attempt epoch millis, TTL = time until that instant
//	{prefix}:{name}:last-error   error summary for diagnostics
//
// The key layout is compatibility-relevant: replicas running different
// service versions read and mutate the same records.
type RedisStore struct {
	client redis.UniversalClient
	cfg    RedisStoreConfig
}

// NewRedisStore creates a Redis-backed state store.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "circuit"
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	if cfg.TTL == (TTLConfig{}) {
		cfg.TTL = DefaultTTLs()
	}
	return &RedisStore{client: client, cfg: cfg}
}

// Load implements StateStore. A single MGET fetches the whole record;
// missing keys read as closed with zero counters.
func (s *RedisStore) Load(ctx context.Context, name string) (Snapshot, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	vals, err := s.client.MGet(ctx,
		s.key(name, "state"),
		s.key(name, "failures"),
		s.key(name, "success"),
		s.key(name, "next-attempt"),
		s.key(name, "last-error"),
	).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load circuit %q: %w", name, err)
	}

	snap := Snapshot{State: StateClosed}
	if raw, ok := vals[0].(string); ok {
		snap.State = ParseState(raw)
	}
	if raw, ok := vals[1].(string); ok {
		snap.Failures, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, ok := vals[2].(string); ok {
		snap.Successes, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, ok := vals[3].(string); ok {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			snap.NextAttempt = time.UnixMilli(millis)
		}
	}
	if raw, ok := vals[4].(string); ok {
		snap.LastFailure = raw
	}
	return snap, nil
}

// SetState implements StateStore.
func (s *RedisStore) SetState(ctx context.Context, name string, state State) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.key(name, "state"), state.String(), s.cfg.TTL.State).Err(); err != nil {
		return fmt.Errorf("set circuit %q state: %w", name, err)
	}
	return nil
}

// IncrFailures implements StateStore. INCR and EXPIRE run in one
// transactional pipeline so the counter can never survive without a TTL.
func (s *RedisStore) IncrFailures(ctx context.Context, name string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.key(name, "failures"))
	pipe.Expire(ctx, s.key(name, "failures"), s.cfg.TTL.Failures)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment circuit %q failures: %w", name, err)
	}
	return incr.Val(), nil
}

// ResetFailures implements StateStore.
func (s *RedisStore) ResetFailures(ctx context.Context, name string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.client.Del(ctx, s.key(name, "failures")).Err(); err != nil {
		return fmt.Errorf("reset circuit %q failures: %w", name, err)
	}
	return nil
}

// IncrSuccesses implements StateStore.
func (s *RedisStore) IncrSuccesses(ctx context.Context, name string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.key(name, "success"))
	pipe.Expire(ctx, s.key(name, "success"), s.cfg.TTL.Successes)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment circuit %q successes: %w", name, err)
	}
	return incr.Val(), nil
}

// ResetCounters implements StateStore.
func (s *RedisStore) ResetCounters(ctx context.Context, name string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.client.Del(ctx, s.key(name, "failures"), s.key(name, "success")).Err(); err != nil {
		return fmt.Errorf("reset circuit %q counters: %w", name, err)
	}
	return nil
}

// SetNextAttempt implements StateStore. The record expires at the instant it
// names, so an expired key already means "probe allowed".
func (s *RedisStore) SetNextAttempt(ctx context.Context, name string, at time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ttl := time.Until(at)
	if ttl <= 0 {
		if err := s.client.Del(ctx, s.key(name, "next-attempt")).Err(); err != nil {
			return fmt.Errorf("clear circuit %q next-attempt: %w", name, err)
		}
		return nil
	}
	if err := s.client.Set(ctx, s.key(name, "next-attempt"), at.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("set circuit %q next-attempt: %w", name, err)
	}
	return nil
}

// SetLastFailure implements StateStore.
func (s *RedisStore) SetLastFailure(ctx context.Context, name string, message string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if len(message) > maxLastFailureLen {
		message = message[:maxLastFailureLen]
	}
	if err := s.client.Set(ctx, s.key(name, "last-error"), message, s.cfg.TTL.Failures).Err(); err != nil {
		return fmt.Errorf("set circuit %q last failure: %w", name, err)
	}
	return nil
}

func (s *RedisStore) key(name, field string) string {
	return fmt.Sprintf("%s:%s:%s", s.cfg.KeyPrefix, name, field)
}

func (s *RedisStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}
