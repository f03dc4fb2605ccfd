package config

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics provides parameterized Prometheus metrics for configuration
// management. The factory creates a standard set of metrics for tracking
// configuration loads, validation errors, and fallback behavior, namespaced
// by component.
//
// Metrics generated (parameterized by component name):
//   - {component}_config_load_timestamp: Unix timestamp of last configuration load
//   - {component}_config_validation_errors_total: Total validation errors by field
//   - {component}_config_fallbacks_total: Total fallback operations by field
type ConfigMetrics struct {
	loadTimestamp    prometheus.Gauge
	validationErrors *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
}

// NewConfigMetrics creates configuration metrics for the named component.
// Calling it twice with the same component name panics (promauto registers
// into the default registry), so components should create their metrics once.
func NewConfigMetrics(componentName string) *ConfigMetrics {
	return &ConfigMetrics{
		loadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", componentName),
			Help: fmt.Sprintf("Unix timestamp of the last %s configuration load", componentName),
		}),
		validationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", componentName),
			Help: fmt.Sprintf("Total %s configuration validation errors by field", componentName),
		}, []string{"field"}),
		fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", componentName),
			Help: fmt.Sprintf("Total %s configuration fallbacks by field", componentName),
		}, []string{"field"}),
	}
}

// RecordLoadTimestamp records the time of a configuration load.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.loadTimestamp.Set(float64(time.Now().Unix()))
}

// RecordValidationError records a validation error for a configuration field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.validationErrors.WithLabelValues(field).Inc()
}

// RecordFallback records a fallback to the default value for a field.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.fallbacks.WithLabelValues(field).Inc()
}
