// Package config provides environment-based configuration loading with
// validation and fallback-to-default behavior.
//
// Loaders never fail the process: an invalid value produces a warning and the
// default is used instead, so a typo in one knob cannot keep a replica from
// starting. Each fallback is surfaced both as a warning string on the result
// and as a Prometheus counter (see metrics.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult represents the result of loading a configuration value.
// It contains the loaded value, any warnings generated during loading,
// and a flag indicating whether a fallback value was used.
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString loads a string value from an environment variable.
// If the environment variable is not set, the default value is returned.
// No validation is performed.
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback loads a string value from an environment variable
// with validation and automatic fallback to default on validation failure.
//
// The validator may be nil to skip validation. Validation failures result in
// warnings, not errors; the default value is always usable.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return ConfigLoadResult{
				Value: defaultValue,
				Warnings: []string{fmt.Sprintf(
					"Invalid %s='%s': %v, falling back to default '%s'",
					envKey, value, err, defaultValue)},
				FallbackApplied: true,
			}
		}
	}

	return ConfigLoadResult{Value: value}
}

// LoadEnvDuration loads a time.Duration from an environment variable.
// The value must parse with time.ParseDuration (e.g. "30s", "5m", "1h").
// A parse or validation failure falls back to the default with a warning.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return ConfigLoadResult{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%s'",
				envKey, raw, err, defaultValue)},
			FallbackApplied: true,
		}
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return ConfigLoadResult{
				Value: defaultValue,
				Warnings: []string{fmt.Sprintf(
					"Invalid %s='%s': %v, falling back to default '%s'",
					envKey, raw, err, defaultValue)},
				FallbackApplied: true,
			}
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvInt loads an integer from an environment variable.
// A parse or validation failure falls back to the default with a warning.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return ConfigLoadResult{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%d'",
				envKey, raw, err, defaultValue)},
			FallbackApplied: true,
		}
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return ConfigLoadResult{
				Value: defaultValue,
				Warnings: []string{fmt.Sprintf(
					"Invalid %s='%s': %v, falling back to default '%d'",
					envKey, raw, err, defaultValue)},
				FallbackApplied: true,
			}
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvBool loads a boolean from an environment variable.
// Accepted values are those of strconv.ParseBool ("1", "t", "true", ...).
// A parse failure falls back to the default with a warning.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return ConfigLoadResult{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%t'",
				envKey, raw, err, defaultValue)},
			FallbackApplied: true,
		}
	}

	return ConfigLoadResult{Value: parsed}
}
