package reconcile

import (
	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Status is the three-tier health of an edge, a chain or the whole system.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worst returns the more severe of two statuses.
func Worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// EdgeHealthy reports whether ratio is within thresholdPercent of 100.
func EdgeHealthy(ratio, thresholdPercent float64) bool {
	return ratio >= 100-thresholdPercent
}

// Tier maps a ratio to a three-tier status. A healthy edge is always
// StatusHealthy; below that, degradedFloor separates degraded from critical.
func Tier(ratio, thresholdPercent, degradedFloor float64) Status {
	if EdgeHealthy(ratio, thresholdPercent) {
		return StatusHealthy
	}
	if ratio >= degradedFloor {
		return StatusDegraded
	}
	return StatusCritical
}

// Classification is the per-edge health of one chain.
type Classification struct {
	Edges   [3]bool
	Healthy bool
}

// HealthyCount returns the number of healthy edges.
func (c Classification) HealthyCount() int {
	n := 0
	for _, ok := range c.Edges {
		if ok {
			n++
		}
	}
	return n
}

// Classify applies the per-edge test to every ratio of s.
func Classify(s domain.SyncStatus, thresholdPercent float64) Classification {
	var c Classification
	c.Healthy = true
	for i, ratio := range s.Values() {
		c.Edges[i] = EdgeHealthy(ratio, thresholdPercent)
		c.Healthy = c.Healthy && c.Edges[i]
	}
	return c
}

// ChainTier returns the worst edge tier of s.
func ChainTier(s domain.SyncStatus, thresholdPercent, degradedFloor float64) Status {
	status := StatusHealthy
	for _, ratio := range s.Values() {
		status = Worst(status, Tier(ratio, thresholdPercent, degradedFloor))
	}
	return status
}

// SystemHealth is the healthy-edge share across all chains.
type SystemHealth struct {
	HealthyEdges int     `json:"healthy_edges"`
	TotalEdges   int     `json:"total_edges"`
	Percent      float64 `json:"percent"`
	Healthy      bool    `json:"healthy"`
}

// Aggregate computes the system-wide health percentage. systemHealthyPercent
// is configured separately from the per-edge threshold. An empty chain set
// is reported as 0% and unhealthy.
func Aggregate(cs []Classification, systemHealthyPercent float64) SystemHealth {
	sh := SystemHealth{TotalEdges: 3 * len(cs)}
	for _, c := range cs {
		sh.HealthyEdges += c.HealthyCount()
	}
	if sh.TotalEdges == 0 {
		return sh
	}
	sh.Percent = float64(sh.HealthyEdges) / float64(sh.TotalEdges) * 100
	sh.Healthy = sh.Percent >= systemHealthyPercent
	return sh
}
