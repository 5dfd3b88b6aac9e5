package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/syncwatch/internal/core/config"
	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/indexing/metrics"
	"github.com/vietddude/syncwatch/internal/infra/rpc/provider"
	"github.com/vietddude/syncwatch/internal/infra/source"
)

// Collector runs one poll cycle against a pair of indexer endpoints.
type Collector interface {
	Collect(ctx context.Context, ep source.Endpoints) (*source.Snapshot, error)
	Chains() []domain.Chain
}

// PollOptions override the configured endpoints and threshold for one cycle.
type PollOptions struct {
	FastURL       string
	DownstreamURL string
	Threshold     *float64
}

// Monitor runs poll cycles and keeps the latest scheduled report.
type Monitor struct {
	collector  Collector
	endpoints  source.Endpoints
	thresholds Thresholds
	log        *slog.Logger

	mu       sync.RWMutex
	latest   *Report
	onReport []func(*Report)
}

// NewMonitor creates a new health monitor.
func NewMonitor(collector Collector, endpoints source.Endpoints, th Thresholds, logger *slog.Logger) *Monitor {
	return &Monitor{
		collector:  collector,
		endpoints:  endpoints,
		thresholds: th,
		log:        logger.With("component", "monitor"),
	}
}

// Thresholds returns the configured thresholds.
func (m *Monitor) Thresholds() Thresholds {
	return m.thresholds
}

// OnReport registers fn to run after every Refresh.
func (m *Monitor) OnReport(fn func(*Report)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReport = append(m.onReport, fn)
}

// Poll runs one independent cycle. It does not touch the latest report.
func (m *Monitor) Poll(ctx context.Context, opts PollOptions) (*Report, error) {
	ep := m.endpoints
	if opts.FastURL != "" {
		ep.FastURL = opts.FastURL
	}
	if opts.DownstreamURL != "" {
		ep.DownstreamURL = opts.DownstreamURL
	}
	if ep.FastURL == "" || ep.DownstreamURL == "" {
		return nil, config.ErrMissingEndpoint
	}

	th := m.thresholds
	if opts.Threshold != nil {
		if err := config.ValidateThreshold(*opts.Threshold); err != nil {
			return nil, err
		}
		th.EdgePercent = config.RoundThreshold(*opts.Threshold)
	}

	start := time.Now()
	snap, err := m.collector.Collect(ctx, ep)
	if err != nil {
		metrics.PollDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("poll cycle: %w", err)
	}
	metrics.PollDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	return BuildReport(snap, m.collector.Chains(), th), nil
}

// Refresh polls the configured endpoints and stores the result as the latest
// report. On failure the previous report is kept. A cycle that started before
// the stored report is returned but never replaces it.
func (m *Monitor) Refresh(ctx context.Context) (*Report, error) {
	report, err := m.Poll(ctx, PollOptions{})
	if err != nil {
		m.log.Error("Poll cycle failed", "error", err)
		return nil, err
	}

	m.mu.Lock()
	if m.latest != nil && report.UpdatedAt.Before(m.latest.UpdatedAt) {
		m.mu.Unlock()
		m.log.Debug("Discarding stale poll cycle", "cycle", report.CycleID, "started_at", report.UpdatedAt)
		return report, nil
	}
	m.latest = report
	hooks := append([]func(*Report){}, m.onReport...)
	m.mu.Unlock()

	recordReport(report)
	for _, fn := range hooks {
		fn(report)
	}

	m.log.Debug("Poll cycle complete",
		"cycle", report.CycleID,
		"status", report.Status,
		"system_percent", report.System.Percent,
	)
	return report, nil
}

// Providers returns per-endpoint transport health when the collector tracks it.
func (m *Monitor) Providers() map[string]provider.HealthStatus {
	if p, ok := m.collector.(interface {
		Providers() map[string]provider.HealthStatus
	}); ok {
		return p.Providers()
	}
	return nil
}

// Latest returns the most recent scheduled report, or nil before the first
// successful cycle.
func (m *Monitor) Latest() *Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func recordReport(r *Report) {
	for id, ch := range r.Chains {
		for edge, er := range ch.Edges {
			metrics.SyncRatio.WithLabelValues(id, edge).Set(er.Ratio)
		}
		healthy := 0.0
		if ch.Healthy {
			healthy = 1
		}
		metrics.ChainHealthy.WithLabelValues(id).Set(healthy)
		for _, edge := range ch.Skew {
			metrics.MonotonicityViolationsTotal.WithLabelValues(id, edge).Inc()
		}
	}
	metrics.SystemHealthPercent.Set(r.System.Percent)
}
