// The worker command runs one order-automation replica: an engine pool, the
// shared circuit breakers, and the operational HTTP surfaces. Replicas are
// disposable; all cross-replica coordination happens through the Redis fault
// state store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"orderpilot/internal/infra/browser"
	"orderpilot/internal/infra/browserpool"
	workerPkg "orderpilot/internal/infra/worker"
	"orderpilot/internal/observability/logging"
	"orderpilot/internal/pkg/config"
	"orderpilot/internal/resilience/circuitbreaker"
	"orderpilot/internal/usecase/automation"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configMetrics := config.NewConfigMetrics("worker")
	cfg := workerPkg.LoadConfigFromEnv(logger, configMetrics)
	logger.Info("worker configuration loaded",
		slog.Int("pool_min", cfg.PoolMinInstances),
		slog.Int("pool_max", cfg.PoolMaxInstances),
		slog.Duration("pool_max_age", cfg.PoolMaxInstanceAge),
		slog.Int("pool_max_usage", cfg.PoolMaxUsageCount),
		slog.String("redis_addr", cfg.RedisAddr),
		slog.Int("health_port", cfg.HealthPort),
		slog.Int("metrics_port", cfg.MetricsPort))

	// Circuit state store: Redis shared across replicas with a local shadow,
	// or memory-only when Redis is not configured or unreachable at boot.
	store, redisClient := initStateStore(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", slog.Any("error", err))
			}
		}()
	}

	registry := circuitbreaker.NewRegistry(store, logger)
	for _, circuitCfg := range []circuitbreaker.Config{
		circuitbreaker.BrowserWorkflowConfig(),
		circuitbreaker.ArtifactUploadConfig(),
	} {
		if _, err := registry.Register(circuitCfg); err != nil {
			logger.Error("failed to register circuit",
				slog.String("circuit", circuitCfg.Name),
				slog.Any("error", err))
			os.Exit(1)
		}
	}

	browserCfg := browser.DefaultConfig()
	browserCfg.Headless = cfg.BrowserHeadless
	launcher := browser.NewLauncher(browserCfg)
	if err := launcher.Start(); err != nil {
		logger.Error("failed to start browser driver", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := launcher.Close(); err != nil {
			logger.Error("failed to stop browser driver", slog.Any("error", err))
		}
	}()

	pool := browserpool.New(browserpool.Config{
		MinInstances:   cfg.PoolMinInstances,
		MaxInstances:   cfg.PoolMaxInstances,
		MaxInstanceAge: cfg.PoolMaxInstanceAge,
		MaxUsageCount:  cfg.PoolMaxUsageCount,
	}, launcher, logger)

	// Warm-up failure is loud but survivable: the replica serves with zero
	// capacity and Acquire rebuilds on demand.
	if err := pool.Initialize(ctx); err != nil {
		logger.Error("pool initialization failed, continuing with reduced capacity",
			slog.Any("error", err))
	}

	// The workflow transport mounts on top of this executor; the worker
	// itself only exposes the operational surfaces.
	executor := automation.NewExecutor(pool, registry, logger)
	logger.Info("executor ready", slog.Any("circuits", executor.Breakers().Names()))

	startMetricsServer(ctx, cfg.MetricsPort, logger)

	healthAddr := fmt.Sprintf(":%d", cfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, registry, pool, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)

	sampler, err := workerPkg.NewSampler(cfg.SampleSchedule, registry, pool, logger)
	if err != nil {
		logger.Error("failed to schedule gauge sampler", slog.Any("error", err))
		os.Exit(1)
	}
	sampler.Start()

	logger.Info("worker started")
	<-ctx.Done()

	logger.Info("shutdown signal received")
	healthServer.SetReady(false)
	sampler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool.Shutdown(shutdownCtx)

	logger.Info("worker stopped")
}

// initStateStore builds the circuit state store. With REDIS_ADDR set the
// shared Redis store is fronted by a local shadow that takes over during
// outages; without it the breaker degrades to per-replica memory state.
func initStateStore(ctx context.Context, cfg workerPkg.Config, logger *slog.Logger) (circuitbreaker.StateStore, *redis.Client) {
	shadow := circuitbreaker.NewMemoryStore(circuitbreaker.DefaultTTLs())

	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, circuit state is local to this replica")
		return shadow, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Still wire Redis as primary: the failover store serves the shadow
		// until Redis comes back.
		logger.Warn("redis unreachable at startup, serving circuit state from local shadow",
			slog.String("addr", cfg.RedisAddr),
			slog.Any("error", err))
	} else {
		logger.Info("connected to redis", slog.String("addr", cfg.RedisAddr))
	}

	primary := circuitbreaker.NewRedisStore(client, circuitbreaker.RedisStoreConfig{
		KeyPrefix: cfg.RedisKeyPrefix,
	})
	return circuitbreaker.NewFailoverStore(primary, shadow, logger), client
}
