package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordInstanceRetired(t *testing.T) {
	before := testutil.ToFloat64(PoolInstancesRetiredTotal.WithLabelValues("age"))
	RecordInstanceRetired("age")
	after := testutil.ToFloat64(PoolInstancesRetiredTotal.WithLabelValues("age"))
	assert.Equal(t, before+1, after)
}

func TestUpdatePoolGauges(t *testing.T) {
	UpdatePoolGauges(2, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(PoolInstances.WithLabelValues("available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(PoolInstances.WithLabelValues("in_use")))
}

func TestRecordCircuitState(t *testing.T) {
	RecordCircuitState("test-circuit", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(CircuitState.WithLabelValues("test-circuit")))

	RecordCircuitState("test-circuit", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(CircuitState.WithLabelValues("test-circuit")))
}

func TestRecordCircuitTransition(t *testing.T) {
	before := testutil.ToFloat64(CircuitTransitionsTotal.WithLabelValues("t", "closed", "open"))
	RecordCircuitTransition("t", "closed", "open")
	after := testutil.ToFloat64(CircuitTransitionsTotal.WithLabelValues("t", "closed", "open"))
	assert.Equal(t, before+1, after)
}

func TestRecordOrderCreated(t *testing.T) {
	before := testutil.ToFloat64(OrdersCreatedTotal.WithLabelValues("success"))
	RecordOrderCreated("success")
	after := testutil.ToFloat64(OrdersCreatedTotal.WithLabelValues("success"))
	assert.Equal(t, before+1, after)
}

func TestRecordAcquireWait(t *testing.T) {
	// Histograms have no simple value accessor; just exercise the path.
	RecordAcquireWait(50 * time.Millisecond)
	RecordOrderWorkflowDuration(2 * time.Second)
}
