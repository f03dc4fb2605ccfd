package browserpool

import "fmt"

// HealthReport describes pool health for readiness checks. Diagnostics are
// conveyed through Issues, never through an error.
type HealthReport struct {
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues,omitempty"`
}

// InstanceStats is a point-in-time view of one instance.
type InstanceStats struct {
	ID         string  `json:"id"`
	AgeSeconds float64 `json:"age_seconds"`
	UsageCount int     `json:"usage_count"`
	InUse      bool    `json:"in_use"`
}

// Stats is a point-in-time view of the whole pool.
type Stats struct {
	Total     int             `json:"total"`
	Available int             `json:"available"`
	InUse     int             `json:"in_use"`
	Instances []InstanceStats `json:"instances"`
}

// HealthCheck inspects the liveness of every tracked instance and whether
// the pool holds its configured minimum.
func (p *Pool) HealthCheck() HealthReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	var issues []string
	for _, inst := range p.idle {
		if !inst.engine.Connected() {
			issues = append(issues, fmt.Sprintf("idle instance %s is disconnected", inst.id))
		}
	}
	for _, inst := range p.inUse {
		if !inst.engine.Connected() {
			issues = append(issues, fmt.Sprintf("in-use instance %s is disconnected", inst.id))
		}
	}
	if total := p.totalLocked(); total < p.cfg.MinInstances {
		issues = append(issues, fmt.Sprintf("pool below minimum: %d of %d instances", total, p.cfg.MinInstances))
	}

	return HealthReport{Healthy: len(issues) == 0, Issues: issues}
}

// Stats reports current pool occupancy and per-instance age and usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	stats := Stats{
		Total:     len(p.idle) + len(p.inUse),
		Available: len(p.idle),
		InUse:     len(p.inUse),
		Instances: make([]InstanceStats, 0, len(p.idle)+len(p.inUse)),
	}
	for _, inst := range p.idle {
		stats.Instances = append(stats.Instances, InstanceStats{
			ID:         inst.id,
			AgeSeconds: now.Sub(inst.createdAt).Seconds(),
			UsageCount: inst.usageCount,
		})
	}
	for _, inst := range p.inUse {
		stats.Instances = append(stats.Instances, InstanceStats{
			ID:         inst.id,
			AgeSeconds: now.Sub(inst.createdAt).Seconds(),
			UsageCount: inst.usageCount,
			InUse:      true,
		})
	}
	return stats
}
