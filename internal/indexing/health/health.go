// Package health turns poll cycles into health reports and serves them over
// HTTP and gRPC.
package health

import (
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/indexing/alert"
	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
	"github.com/vietddude/syncwatch/internal/infra/source"
)

// HeightReport is one source's reading.
type HeightReport struct {
	Height    uint64 `json:"height"`
	Available bool   `json:"available"`
}

func heightReport(h domain.Height) HeightReport {
	return HeightReport{Height: h.Int(), Available: h.Available}
}

// EdgeReport is the health of one sync edge.
type EdgeReport struct {
	Ratio   float64          `json:"ratio"`
	Healthy bool             `json:"healthy"`
	Status  reconcile.Status `json:"status"`
}

// BlocksBehind is how many blocks each edge's current side trails its target.
type BlocksBehind struct {
	FastVsAuthoritative       uint64 `json:"fast_vs_authoritative"`
	DownstreamVsFast          uint64 `json:"downstream_vs_fast"`
	DownstreamVsAuthoritative uint64 `json:"downstream_vs_authoritative"`
}

// ChainHealth contains health metrics for a specific blockchain chain.
type ChainHealth struct {
	ChainID         string                `json:"chain_id"`
	Name            string                `json:"name"`
	Status          reconcile.Status      `json:"status"`
	Healthy         bool                  `json:"healthy"`
	Authoritative   HeightReport          `json:"authoritative"`
	FastIndexer     HeightReport          `json:"fast_indexer"`
	Downstream      HeightReport          `json:"downstream"`
	EventsProcessed *uint64               `json:"events_processed,omitempty"`
	Sync            domain.SyncStatus     `json:"sync"`
	Edges           map[string]EdgeReport `json:"edges"`
	BlocksBehind    BlocksBehind          `json:"blocks_behind"`
	Skew            []string              `json:"skew,omitempty"`
}

// Report contains the full system health report of one poll cycle.
type Report struct {
	CycleID          string                 `json:"cycle_id"`
	UpdatedAt        time.Time              `json:"updated_at"`
	ThresholdPercent float64                `json:"threshold_percent"`
	Status           reconcile.Status       `json:"status"`
	System           reconcile.SystemHealth `json:"system"`
	Chains           map[string]ChainHealth `json:"chains"`
	// Order lists chain ids in registry order.
	Order        []string          `json:"-"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

// Thresholds parameterise classification.
type Thresholds struct {
	EdgePercent          float64
	SystemHealthyPercent float64
	DegradedFloor        float64
}

// BuildReport reconciles and classifies every reading of a snapshot.
func BuildReport(snap *source.Snapshot, chains []domain.Chain, th Thresholds) *Report {
	names := make(map[domain.ChainID]string, len(chains))
	for _, ch := range chains {
		names[ch.ID] = ch.Name
	}

	report := &Report{
		CycleID:          snap.CycleID,
		UpdatedAt:        snap.StartedAt,
		ThresholdPercent: th.EdgePercent,
		Status:           reconcile.StatusHealthy,
		Chains:           make(map[string]ChainHealth, len(snap.Readings)),
		Order:            make([]string, 0, len(snap.Readings)),
	}
	if len(snap.SourceErrors) > 0 {
		report.SourceErrors = make(map[string]string, len(snap.SourceErrors))
		for src, msg := range snap.SourceErrors {
			report.SourceErrors[string(src)] = msg
		}
	}

	classes := make([]reconcile.Classification, 0, len(snap.Readings))
	for _, r := range snap.Readings {
		status := reconcile.Reconcile(r)
		class := reconcile.Classify(status, th.EdgePercent)
		classes = append(classes, class)

		ch := ChainHealth{
			ChainID:         r.ChainID,
			Name:            names[r.ChainID],
			Status:          reconcile.ChainTier(status, th.EdgePercent, th.DegradedFloor),
			Healthy:         class.Healthy,
			Authoritative:   heightReport(r.Authoritative),
			FastIndexer:     heightReport(r.FastIndexer),
			Downstream:      heightReport(r.Downstream),
			EventsProcessed: r.EventsProcessed,
			Sync:            status,
			Edges:           make(map[string]EdgeReport, len(domain.Edges)),
			BlocksBehind: BlocksBehind{
				FastVsAuthoritative:       reconcile.BlocksBehind(r.FastIndexer, r.Authoritative),
				DownstreamVsFast:          reconcile.BlocksBehind(r.Downstream, r.FastIndexer),
				DownstreamVsAuthoritative: reconcile.BlocksBehind(r.Downstream, r.Authoritative),
			},
		}
		for i, e := range domain.Edges {
			ratio := status.Ratio(e)
			ch.Edges[e.String()] = EdgeReport{
				Ratio:   ratio,
				Healthy: class.Edges[i],
				Status:  reconcile.Tier(ratio, th.EdgePercent, th.DegradedFloor),
			}
		}
		for _, e := range reconcile.Skew(r) {
			ch.Skew = append(ch.Skew, e.String())
		}

		report.Chains[r.ChainID] = ch
		report.Order = append(report.Order, r.ChainID)
		report.Status = reconcile.Worst(report.Status, ch.Status)
	}

	report.System = reconcile.Aggregate(classes, th.SystemHealthyPercent)
	if len(classes) == 0 {
		report.Status = reconcile.StatusCritical
	}
	return report
}

// Evaluations returns chains in registry order for the alert gate.
func (r *Report) Evaluations() []alert.Evaluation {
	out := make([]alert.Evaluation, 0, len(r.Order))
	for _, id := range r.Order {
		ch := r.Chains[id]
		out = append(out, alert.Evaluation{ChainID: id, ChainName: ch.Name, Status: ch.Sync})
	}
	return out
}
