package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateDuration checks that a duration falls within [min, max].
func ValidateDuration(duration, min, max time.Duration) error {
	if duration < min {
		return fmt.Errorf("duration %s is below minimum %s", duration, min)
	}
	if duration > max {
		return fmt.Errorf("duration %s exceeds maximum %s", duration, max)
	}
	return nil
}

// ValidatePositiveDuration checks that a duration is greater than zero.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", duration)
	}
	return nil
}

// ValidateIntRange checks that an integer falls within [min, max].
func ValidateIntRange(value, min, max int) error {
	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}
	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}
	return nil
}

// ValidatePositiveInt checks that an integer is greater than zero.
func ValidatePositiveInt(value int) error {
	if value <= 0 {
		return fmt.Errorf("value must be positive, got %d", value)
	}
	return nil
}

// ValidateCronSchedule checks the expression against the standard 5-field
// cron parser, including descriptors such as "@every 15s".
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("cron schedule must not be empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule: %w", err)
	}
	return nil
}

// ValidatePort checks that an integer is a usable TCP port.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d is outside the valid range 1-65535", port)
	}
	return nil
}
