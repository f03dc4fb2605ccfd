package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"orderpilot/internal/observability/metrics"
	"orderpilot/internal/resilience/circuitbreaker"
)

// Sampler refreshes the pool and circuit gauges on a cron schedule, so
// dashboards track state even while no orders flow.
type Sampler struct {
	cron     *cron.Cron
	circuits CircuitStatusSource
	pool     PoolStatusSource
	logger   *slog.Logger
}

// NewSampler schedules periodic sampling. The schedule accepts standard cron
// expressions and descriptors ("@every 15s").
func NewSampler(schedule string, circuits CircuitStatusSource, pool PoolStatusSource, logger *slog.Logger) (*Sampler, error) {
	s := &Sampler{
		cron:     cron.New(),
		circuits: circuits,
		pool:     pool,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sample); err != nil {
		return nil, fmt.Errorf("schedule sampler: %w", err)
	}
	return s, nil
}

// Start begins sampling in the background.
func (s *Sampler) Start() {
	s.cron.Start()
	s.logger.Info("gauge sampler started")
}

// Stop halts the schedule and waits for a running sample to finish.
func (s *Sampler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("gauge sampler stopped")
}

func (s *Sampler) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.pool != nil {
		stats := s.pool.Stats()
		metrics.UpdatePoolGauges(stats.Available, stats.InUse)
	}
	if s.circuits != nil {
		for _, status := range s.circuits.StatusAll(ctx) {
			state := circuitbreaker.ParseState(status.State)
			metrics.RecordCircuitState(status.Circuit, float64(state))
		}
	}
}
