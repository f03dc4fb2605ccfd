package browserpool

import "time"

// Config holds the pool's sizing and retirement policy. All fields are
// caller-overridable; zero values fall back to the defaults below.
type Config struct {
	// MinInstances is the number of instances the pool keeps warm.
	// Default: 1
	MinInstances int

	// MaxInstances bounds live instances, in use or idle.
	// Default: 3
	MaxInstances int

	// MaxInstanceAge retires an instance once it has been alive this long.
	// Default: 30 minutes
	MaxInstanceAge time.Duration

	// MaxUsageCount retires an instance after this many acquisitions.
	// Default: 50
	MaxUsageCount int

	// LaunchesPerMinute throttles instance launches so a retirement storm
	// cannot stampede browser startups. Negative disables the throttle.
	// Default: 12
	LaunchesPerMinute float64

	// LaunchBurst is the launch throttle's burst allowance.
	// Default: MaxInstances
	LaunchBurst int
}

// DefaultConfig returns the pool policy used in production.
func DefaultConfig() Config {
	return Config{
		MinInstances:      1,
		MaxInstances:      3,
		MaxInstanceAge:    30 * time.Minute,
		MaxUsageCount:     50,
		LaunchesPerMinute: 12,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinInstances <= 0 {
		c.MinInstances = def.MinInstances
	}
	if c.MaxInstances <= 0 {
		c.MaxInstances = def.MaxInstances
	}
	if c.MaxInstances < c.MinInstances {
		c.MaxInstances = c.MinInstances
	}
	if c.MaxInstanceAge <= 0 {
		c.MaxInstanceAge = def.MaxInstanceAge
	}
	if c.MaxUsageCount <= 0 {
		c.MaxUsageCount = def.MaxUsageCount
	}
	if c.LaunchesPerMinute == 0 {
		c.LaunchesPerMinute = def.LaunchesPerMinute
	}
	if c.LaunchBurst <= 0 {
		c.LaunchBurst = c.MaxInstances
	}
	return c
}
