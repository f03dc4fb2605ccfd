package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderpilot/internal/infra/browserpool"
	"orderpilot/internal/observability/metrics"
	"orderpilot/internal/resilience/circuitbreaker"
)

func TestNewSampler_RejectsBadSchedule(t *testing.T) {
	_, err := NewSampler("not a schedule", &stubCircuits{}, &stubPool{}, discardLogger())
	assert.Error(t, err)
}

func TestSample_RefreshesGauges(t *testing.T) {
	circuits := &stubCircuits{statuses: []circuitbreaker.Status{
		{Circuit: "sampler-test-workflow", State: "open"},
		{Circuit: "sampler-test-upload", State: "closed"},
	}}
	pool := &stubPool{stats: browserpool.Stats{Total: 3, Available: 2, InUse: 1}}

	sampler, err := NewSampler("@every 15s", circuits, pool, discardLogger())
	require.NoError(t, err)

	sampler.sample()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PoolInstances.WithLabelValues("available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PoolInstances.WithLabelValues("in_use")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CircuitState.WithLabelValues("sampler-test-workflow")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.CircuitState.WithLabelValues("sampler-test-upload")))
}

func TestSamplerStartStop(t *testing.T) {
	sampler, err := NewSampler("@every 1h", &stubCircuits{}, &stubPool{}, discardLogger())
	require.NoError(t, err)

	sampler.Start()
	sampler.Stop()
}
