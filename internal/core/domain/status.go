package domain

// Edge identifies one of the three sync comparisons.
type Edge int

const (
	EdgeFastVsAuthoritative Edge = iota
	EdgeDownstreamVsFast
	EdgeDownstreamVsAuthoritative
)

// Edges lists the edges in report order.
var Edges = [3]Edge{EdgeFastVsAuthoritative, EdgeDownstreamVsFast, EdgeDownstreamVsAuthoritative}

func (e Edge) String() string {
	switch e {
	case EdgeFastVsAuthoritative:
		return "fast_vs_authoritative"
	case EdgeDownstreamVsFast:
		return "downstream_vs_fast"
	case EdgeDownstreamVsAuthoritative:
		return "downstream_vs_authoritative"
	default:
		return "unknown"
	}
}

// SyncStatus holds the three derived ratios of a chain, each in [0, 100].
type SyncStatus struct {
	FastVsAuthoritative       float64 `json:"fast_vs_authoritative"`
	DownstreamVsFast          float64 `json:"downstream_vs_fast"`
	DownstreamVsAuthoritative float64 `json:"downstream_vs_authoritative"`
}

// Values returns the ratios in Edges order.
func (s SyncStatus) Values() [3]float64 {
	return [3]float64{s.FastVsAuthoritative, s.DownstreamVsFast, s.DownstreamVsAuthoritative}
}

// Ratio returns the ratio of one edge.
func (s SyncStatus) Ratio(e Edge) float64 {
	return s.Values()[e]
}
