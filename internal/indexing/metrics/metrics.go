package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceHeight tracks the latest height reported by each source
	SourceHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncwatch_source_height",
			Help: "Latest block height reported by a source",
		},
		[]string{"chain", "source"},
	)

	// SourceUnavailableTotal counts reads that failed or were missing
	SourceUnavailableTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_source_unavailable_total",
			Help: "Total number of unavailable height reads",
		},
		[]string{"chain", "source"},
	)

	// SyncRatio tracks the sync percentage of each edge
	SyncRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncwatch_sync_ratio_percent",
			Help: "Sync ratio between two sources, clamped to [0, 100]",
		},
		[]string{"chain", "edge"},
	)

	// ChainHealthy is 1 when every edge of a chain is healthy
	ChainHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncwatch_chain_healthy",
			Help: "Whether every sync edge of the chain is healthy",
		},
		[]string{"chain"},
	)

	// SystemHealthPercent tracks the share of healthy edges
	SystemHealthPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_system_health_percent",
			Help: "Share of healthy sync edges across all chains",
		},
	)

	// MonotonicityViolationsTotal counts readings where a downstream source was ahead
	MonotonicityViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_monotonicity_violations_total",
			Help: "Total number of readings where a source was ahead of its target",
		},
		[]string{"chain", "edge"},
	)

	// PollDuration tracks poll cycle latency
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncwatch_poll_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// SourceRequestLatency tracks upstream request latency
	SourceRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncwatch_source_request_seconds",
			Help:    "Upstream request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "result"},
	)

	// AlertsSentTotal counts dispatched alerts
	AlertsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"chain", "kind"},
	)

	// AlertsFailedTotal counts alerts the transport rejected
	AlertsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_alerts_failed_total",
			Help: "Total number of alerts that failed to send",
		},
		[]string{"chain"},
	)

	// AlertsSuppressedTotal counts alerts held back by the suppression policy
	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by policy",
		},
		[]string{"chain"},
	)
)
