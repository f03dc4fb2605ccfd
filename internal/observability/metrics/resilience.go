package metrics

import "time"

// RecordInstanceCreated records a successful browser instance launch.
func RecordInstanceCreated() {
	PoolInstancesCreatedTotal.Inc()
}

// RecordInstanceRetired records an instance retirement.
// Reason should be one of "age", "usage", "dead", "shutdown".
func RecordInstanceRetired(reason string) {
	PoolInstancesRetiredTotal.WithLabelValues(reason).Inc()
}

// RecordAcquireWait records the time a caller spent waiting for an instance.
func RecordAcquireWait(wait time.Duration) {
	PoolAcquireWaitSeconds.Observe(wait.Seconds())
}

// UpdatePoolGauges updates the per-state pool instance gauges.
// This should be called on every acquire/release and periodically by the
// stats sampler so the gauges stay fresh even when the pool is idle.
func UpdatePoolGauges(available, inUse int) {
	PoolInstances.WithLabelValues("available").Set(float64(available))
	PoolInstances.WithLabelValues("in_use").Set(float64(inUse))
}

// RecordCircuitState updates the state gauge for a circuit.
// Value should be 0 for closed, 1 for open, 2 for half-open.
func RecordCircuitState(circuit string, value float64) {
	CircuitState.WithLabelValues(circuit).Set(value)
}

// RecordCircuitTransition records a breaker state transition.
func RecordCircuitTransition(circuit, from, to string) {
	CircuitTransitionsTotal.WithLabelValues(circuit, from, to).Inc()
}

// RecordCircuitFailure records a failed protected execution.
func RecordCircuitFailure(circuit string) {
	CircuitFailuresTotal.WithLabelValues(circuit).Inc()
}

// RecordCircuitTimeout records an execution abandoned after its budget.
func RecordCircuitTimeout(circuit string) {
	CircuitTimeoutsTotal.WithLabelValues(circuit).Inc()
}

// RecordCircuitRejection records an execution rejected by an open circuit.
func RecordCircuitRejection(circuit string) {
	CircuitRejectionsTotal.WithLabelValues(circuit).Inc()
}

// RecordStoreFallback records a circuit state operation served from local
// shadow state because the shared store was unreachable.
func RecordStoreFallback(circuit, op string) {
	CircuitStoreFallbacksTotal.WithLabelValues(circuit, op).Inc()
}

// RecordOrderCreated records the result of an order creation workflow.
// Status should be "success", "failure", "rejected", or "timeout".
func RecordOrderCreated(status string) {
	OrdersCreatedTotal.WithLabelValues(status).Inc()
}

// RecordOrderWorkflowDuration records the end-to-end workflow duration.
func RecordOrderWorkflowDuration(d time.Duration) {
	OrderWorkflowDuration.Observe(d.Seconds())
}
