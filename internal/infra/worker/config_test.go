package worker

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"orderpilot/internal/pkg/config"
)

// promauto registers into the default registry, so the test binary shares
// one metrics instance.
var testConfigMetrics = config.NewConfigMetrics("worker_test")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv(discardLogger(), testConfigMetrics)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("POOL_MIN_INSTANCES", "2")
	t.Setenv("POOL_MAX_INSTANCES", "5")
	t.Setenv("POOL_MAX_INSTANCE_AGE", "1h")
	t.Setenv("POOL_MAX_USAGE_COUNT", "100")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_KEY_PREFIX", "orderpilot")
	t.Setenv("WORKER_HEALTH_PORT", "8081")
	t.Setenv("WORKER_METRICS_PORT", "8080")
	t.Setenv("SAMPLE_SCHEDULE", "@every 30s")

	cfg := LoadConfigFromEnv(discardLogger(), testConfigMetrics)

	assert.Equal(t, 2, cfg.PoolMinInstances)
	assert.Equal(t, 5, cfg.PoolMaxInstances)
	assert.Equal(t, time.Hour, cfg.PoolMaxInstanceAge)
	assert.Equal(t, 100, cfg.PoolMaxUsageCount)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "orderpilot", cfg.RedisKeyPrefix)
	assert.Equal(t, 8081, cfg.HealthPort)
	assert.Equal(t, 8080, cfg.MetricsPort)
	assert.Equal(t, "@every 30s", cfg.SampleSchedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_FallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("POOL_MAX_INSTANCES", "not-a-number")
	t.Setenv("POOL_MAX_INSTANCE_AGE", "-5m")
	t.Setenv("SAMPLE_SCHEDULE", "definitely not cron")

	cfg := LoadConfigFromEnv(discardLogger(), testConfigMetrics)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.PoolMaxInstances, cfg.PoolMaxInstances)
	assert.Equal(t, defaults.PoolMaxInstanceAge, cfg.PoolMaxInstanceAge)
	assert.Equal(t, defaults.SampleSchedule, cfg.SampleSchedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_RepairsInvertedMinMax(t *testing.T) {
	t.Setenv("POOL_MIN_INSTANCES", "5")
	t.Setenv("POOL_MAX_INSTANCES", "2")

	cfg := LoadConfigFromEnv(discardLogger(), testConfigMetrics)

	assert.Equal(t, 5, cfg.PoolMinInstances)
	assert.Equal(t, 5, cfg.PoolMaxInstances)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min", func(c *Config) { c.PoolMinInstances = 0 }},
		{"max below min", func(c *Config) { c.PoolMinInstances = 3; c.PoolMaxInstances = 1 }},
		{"negative age", func(c *Config) { c.PoolMaxInstanceAge = -time.Minute }},
		{"privileged health port", func(c *Config) { c.HealthPort = 80 }},
		{"port collision", func(c *Config) { c.MetricsPort = c.HealthPort }},
		{"bad schedule", func(c *Config) { c.SampleSchedule = "nope" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
