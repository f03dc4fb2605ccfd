package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "custom")
	assert.Equal(t, "custom", LoadEnvString("TEST_STRING", "default"))
	assert.Equal(t, "default", LoadEnvString("TEST_STRING_UNSET", "default"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		validator    func(string) error
		wantValue    string
		wantFallback bool
	}{
		{
			name:      "unset uses default without warning",
			wantValue: "default",
		},
		{
			name:      "valid value passes",
			envValue:  "valid",
			validator: func(string) error { return nil },
			wantValue: "valid",
		},
		{
			name:         "invalid value falls back",
			envValue:     "bad",
			validator:    func(string) error { return assert.AnError },
			wantValue:    "default",
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_FALLBACK", tt.envValue)
			}
			result := LoadEnvWithFallback("TEST_FALLBACK", "default", tt.validator)
			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				assert.NotEmpty(t, result.Warnings)
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	result := LoadEnvDuration("TEST_DURATION", time.Minute, ValidatePositiveDuration)
	assert.Equal(t, 45*time.Second, result.Value)
	assert.False(t, result.FallbackApplied)

	t.Setenv("TEST_DURATION", "not-a-duration")
	result = LoadEnvDuration("TEST_DURATION", time.Minute, nil)
	assert.Equal(t, time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)

	t.Setenv("TEST_DURATION", "-5s")
	result = LoadEnvDuration("TEST_DURATION", time.Minute, ValidatePositiveDuration)
	assert.Equal(t, time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "7")
	result := LoadEnvInt("TEST_INT", 3, ValidatePositiveInt)
	assert.Equal(t, 7, result.Value)

	t.Setenv("TEST_INT", "zero")
	result = LoadEnvInt("TEST_INT", 3, nil)
	assert.Equal(t, 3, result.Value)
	assert.True(t, result.FallbackApplied)

	t.Setenv("TEST_INT", "-1")
	result = LoadEnvInt("TEST_INT", 3, ValidatePositiveInt)
	assert.Equal(t, 3, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	result := LoadEnvBool("TEST_BOOL", false)
	assert.Equal(t, true, result.Value)

	t.Setenv("TEST_BOOL", "maybe")
	result = LoadEnvBool("TEST_BOOL", true)
	assert.Equal(t, true, result.Value)
	assert.True(t, result.FallbackApplied)
}
