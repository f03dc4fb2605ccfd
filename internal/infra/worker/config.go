// Package worker holds the operational shell of a replica: environment
// configuration, the health/readiness HTTP server, and periodic gauge
// sampling.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"orderpilot/internal/pkg/config"
)

// Config holds the operational configuration for one worker replica.
//
// Every field has a safe default and is loaded fail-open: an invalid
// environment value produces a warning and a fallback, never a startup
// failure. A typo in one knob must not keep a replica from serving.
type Config struct {
	// PoolMinInstances is the number of engine instances kept warm.
	// Range: 1-20. Default: 1.
	PoolMinInstances int

	// PoolMaxInstances caps concurrent engine instances per replica.
	// Range: 1-20, must be >= PoolMinInstances. Default: 3.
	PoolMaxInstances int

	// PoolMaxInstanceAge retires an instance at its next release once it
	// has been alive this long. Default: 30m.
	PoolMaxInstanceAge time.Duration

	// PoolMaxUsageCount retires an instance after this many leases.
	// Default: 50.
	PoolMaxUsageCount int

	// BrowserHeadless controls whether engines run without a display.
	// Default: true.
	BrowserHeadless bool

	// RedisAddr is the shared state store address (host:port). Empty
	// disables Redis; circuit state then lives only in process memory.
	RedisAddr string

	// RedisKeyPrefix namespaces the circuit state keys. Default: "circuit".
	RedisKeyPrefix string

	// HealthPort serves /health, /health/ready and /status. Default: 9091.
	HealthPort int

	// MetricsPort serves the Prometheus exposition endpoint. Default: 9090.
	MetricsPort int

	// SampleSchedule is the cron expression for periodic gauge sampling.
	// Default: "@every 15s".
	SampleSchedule string
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		PoolMinInstances:   1,
		PoolMaxInstances:   3,
		PoolMaxInstanceAge: 30 * time.Minute,
		PoolMaxUsageCount:  50,
		BrowserHeadless:    true,
		RedisAddr:          "",
		RedisKeyPrefix:     "circuit",
		HealthPort:         9091,
		MetricsPort:        9090,
		SampleSchedule:     "@every 15s",
	}
}

// Validate checks the configuration, aggregating every violation.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateIntRange(c.PoolMinInstances, 1, 20); err != nil {
		errs = append(errs, fmt.Errorf("pool min instances: %w", err))
	}
	if err := config.ValidateIntRange(c.PoolMaxInstances, 1, 20); err != nil {
		errs = append(errs, fmt.Errorf("pool max instances: %w", err))
	}
	if c.PoolMaxInstances < c.PoolMinInstances {
		errs = append(errs, fmt.Errorf("pool max instances %d below min %d",
			c.PoolMaxInstances, c.PoolMinInstances))
	}
	if err := config.ValidatePositiveDuration(c.PoolMaxInstanceAge); err != nil {
		errs = append(errs, fmt.Errorf("pool max instance age: %w", err))
	}
	if err := config.ValidatePositiveInt(c.PoolMaxUsageCount); err != nil {
		errs = append(errs, fmt.Errorf("pool max usage count: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}
	if c.HealthPort == c.MetricsPort {
		errs = append(errs, fmt.Errorf("health and metrics ports both %d", c.HealthPort))
	}
	if err := config.ValidateCronSchedule(c.SampleSchedule); err != nil {
		errs = append(errs, fmt.Errorf("sample schedule: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables, fail-open: each invalid value falls back to its default with a
// warning and a fallback metric. The returned config is always valid.
//
// Environment variables:
//   - POOL_MIN_INSTANCES, POOL_MAX_INSTANCES
//   - POOL_MAX_INSTANCE_AGE (duration, e.g. "30m")
//   - POOL_MAX_USAGE_COUNT
//   - BROWSER_HEADLESS
//   - REDIS_ADDR, REDIS_KEY_PREFIX
//   - WORKER_HEALTH_PORT, WORKER_METRICS_PORT
//   - SAMPLE_SCHEDULE (cron expression)
func LoadConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) Config {
	cfg := DefaultConfig()

	loadInt := func(field, key string, target *int, validator func(int) error) {
		result := config.LoadEnvInt(key, *target, validator)
		*target = result.Value.(int)
		applyFallback(logger, metrics, field, result)
	}
	loadDuration := func(field, key string, target *time.Duration, validator func(time.Duration) error) {
		result := config.LoadEnvDuration(key, *target, validator)
		*target = result.Value.(time.Duration)
		applyFallback(logger, metrics, field, result)
	}

	loadInt("pool_min_instances", "POOL_MIN_INSTANCES", &cfg.PoolMinInstances,
		func(v int) error { return config.ValidateIntRange(v, 1, 20) })
	loadInt("pool_max_instances", "POOL_MAX_INSTANCES", &cfg.PoolMaxInstances,
		func(v int) error { return config.ValidateIntRange(v, 1, 20) })
	loadDuration("pool_max_instance_age", "POOL_MAX_INSTANCE_AGE", &cfg.PoolMaxInstanceAge,
		config.ValidatePositiveDuration)
	loadInt("pool_max_usage_count", "POOL_MAX_USAGE_COUNT", &cfg.PoolMaxUsageCount,
		config.ValidatePositiveInt)

	headless := config.LoadEnvBool("BROWSER_HEADLESS", cfg.BrowserHeadless)
	cfg.BrowserHeadless = headless.Value.(bool)
	applyFallback(logger, metrics, "browser_headless", headless)

	cfg.RedisAddr = config.LoadEnvString("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisKeyPrefix = config.LoadEnvString("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)

	loadInt("health_port", "WORKER_HEALTH_PORT", &cfg.HealthPort,
		func(v int) error { return config.ValidateIntRange(v, 1024, 65535) })
	loadInt("metrics_port", "WORKER_METRICS_PORT", &cfg.MetricsPort,
		func(v int) error { return config.ValidateIntRange(v, 1024, 65535) })

	schedule := config.LoadEnvWithFallback("SAMPLE_SCHEDULE", cfg.SampleSchedule,
		config.ValidateCronSchedule)
	cfg.SampleSchedule = schedule.Value.(string)
	applyFallback(logger, metrics, "sample_schedule", schedule)

	// Cross-field repair: an inverted min/max pair is a config mistake the
	// per-field validators cannot see.
	if cfg.PoolMaxInstances < cfg.PoolMinInstances {
		logger.Warn("Configuration fallback applied",
			slog.String("field", "pool_max_instances"),
			slog.Int("min", cfg.PoolMinInstances),
			slog.Int("max", cfg.PoolMaxInstances))
		metrics.RecordValidationError("pool_max_instances")
		metrics.RecordFallback("pool_max_instances")
		cfg.PoolMaxInstances = cfg.PoolMinInstances
	}

	metrics.RecordLoadTimestamp()
	return cfg
}

func applyFallback(logger *slog.Logger, metrics *config.ConfigMetrics, field string, result config.ConfigLoadResult) {
	if !result.FallbackApplied {
		return
	}
	metrics.RecordValidationError(field)
	metrics.RecordFallback(field)
	for _, warning := range result.Warnings {
		logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
}
