// Package reconcile turns block height readings into sync ratios, health
// classifications and alert decisions.
//
// Everything here is pure: no I/O, no locks and no state carried between
// poll cycles. Callers own scheduling and transport.
package reconcile

import (
	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Percentage returns current as a percentage of target, clamped to [0, 100].
// A zero target yields 0, so a chain with no authoritative data reads as 0%
// even when every source agrees at zero.
func Percentage(current, target uint64) float64 {
	if target == 0 {
		return 0
	}
	p := float64(current) / float64(target) * 100
	return min(100, max(0, p))
}

// Reconcile derives the three sync ratios of a single reading.
// Unavailable heights count as 0.
func Reconcile(r domain.ChainReading) domain.SyncStatus {
	auth := r.Authoritative.Int()
	fast := r.FastIndexer.Int()
	down := r.Downstream.Int()

	return domain.SyncStatus{
		FastVsAuthoritative:       Percentage(fast, auth),
		DownstreamVsFast:          Percentage(down, fast),
		DownstreamVsAuthoritative: Percentage(down, auth),
	}
}

// Skew returns the edges whose current height is ahead of a non-zero target.
// Such readings come from polling skew between sources; their ratio is
// clamped to 100 by Percentage and Skew is the only place they stay visible.
func Skew(r domain.ChainReading) []domain.Edge {
	auth := r.Authoritative.Int()
	fast := r.FastIndexer.Int()
	down := r.Downstream.Int()

	pairs := [3][2]uint64{{fast, auth}, {down, fast}, {down, auth}}

	var skewed []domain.Edge
	for i, p := range pairs {
		if p[1] > 0 && p[0] > p[1] {
			skewed = append(skewed, domain.Edges[i])
		}
	}
	return skewed
}

// BlocksBehind returns how far current trails target, never negative.
func BlocksBehind(current, target domain.Height) uint64 {
	c, t := current.Int(), target.Int()
	if c >= t {
		return 0
	}
	return t - c
}
