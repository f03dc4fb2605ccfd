// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pool metrics track the browser instance pool lifecycle
var (
	// PoolInstances tracks the number of pool instances by state (available, in_use)
	PoolInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pool_instances",
			Help: "Number of browser instances held by the pool, by state",
		},
		[]string{"state"},
	)

	// PoolInstancesCreatedTotal counts browser instances launched by the pool
	PoolInstancesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_instances_created_total",
			Help: "Total number of browser instances launched",
		},
	)

	// PoolInstancesRetiredTotal counts retired instances by reason
	PoolInstancesRetiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_instances_retired_total",
			Help: "Total number of browser instances retired, by reason",
		},
		[]string{"reason"},
	)

	// PoolAcquireWaitSeconds measures how long callers wait to acquire an instance
	PoolAcquireWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pool_acquire_wait_seconds",
			Help:    "Time spent waiting for a pool instance",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Circuit metrics track breaker state and outcomes per protected operation
var (
	// CircuitState reports the current breaker state (0=closed, 1=open, 2=half-open)
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit"},
	)

	// CircuitTransitionsTotal counts state transitions per circuit
	CircuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"circuit", "from", "to"},
	)

	// CircuitFailuresTotal counts failed protected executions per circuit
	CircuitFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_failures_total",
			Help: "Total number of failed executions recorded by circuit breakers",
		},
		[]string{"circuit"},
	)

	// CircuitTimeoutsTotal counts executions abandoned after exceeding their budget
	CircuitTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_timeouts_total",
			Help: "Total number of executions that exceeded the circuit timeout",
		},
		[]string{"circuit"},
	)

	// CircuitRejectionsTotal counts executions rejected while the circuit was open
	CircuitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_rejections_total",
			Help: "Total number of executions rejected by an open circuit",
		},
		[]string{"circuit"},
	)

	// CircuitStoreFallbacksTotal counts operations served from local shadow state
	// because the shared fault state store was unreachable
	CircuitStoreFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_store_fallbacks_total",
			Help: "Total number of circuit state operations that fell back to local shadow state",
		},
		[]string{"circuit", "op"},
	)
)

// Workflow metrics track order-creation outcomes
var (
	// OrdersCreatedTotal counts order workflow results by status
	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of order creation workflows, by status",
		},
		[]string{"status"},
	)

	// OrderWorkflowDuration measures end-to-end order workflow duration
	OrderWorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_workflow_duration_seconds",
			Help:    "Order creation workflow duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)
)
