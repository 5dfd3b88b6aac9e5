package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

func TestEdgeHealthy_Boundary(t *testing.T) {
	assert.True(t, EdgeHealthy(85, 15))
	assert.False(t, EdgeHealthy(84.999, 15))
	assert.True(t, EdgeHealthy(99.999, 0.001))
	assert.False(t, EdgeHealthy(99.998, 0.001))
	assert.True(t, EdgeHealthy(0, 100))
}

func TestTier(t *testing.T) {
	tests := []struct {
		ratio float64
		want  Status
	}{
		{100, StatusHealthy},
		{86, StatusHealthy},
		{84, StatusCritical},
		{50, StatusCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tier(tt.ratio, 15, 90), "ratio=%v", tt.ratio)
	}

	// A tight threshold opens the degraded band below it.
	assert.Equal(t, StatusDegraded, Tier(95, 0.001, 90))
	assert.Equal(t, StatusCritical, Tier(89.9, 0.001, 90))
}

func TestChainTier_WorstEdgeWins(t *testing.T) {
	s := domain.SyncStatus{FastVsAuthoritative: 100, DownstreamVsFast: 95, DownstreamVsAuthoritative: 50}
	assert.Equal(t, StatusCritical, ChainTier(s, 1, 90))

	s.DownstreamVsAuthoritative = 92
	assert.Equal(t, StatusDegraded, ChainTier(s, 1, 90))
}

func TestClassify_PerEdge(t *testing.T) {
	s := domain.SyncStatus{FastVsAuthoritative: 100, DownstreamVsFast: 70, DownstreamVsAuthoritative: 90}
	c := Classify(s, 15)
	assert.Equal(t, [3]bool{true, false, true}, c.Edges)
	assert.False(t, c.Healthy)
	assert.Equal(t, 2, c.HealthyCount())
}

func TestAggregate_OneUnhealthyEdge(t *testing.T) {
	for _, n := range []int{1, 2, 5, 16, 40} {
		cs := make([]Classification, n)
		for i := range cs {
			cs[i] = Classification{Edges: [3]bool{true, true, true}, Healthy: true}
		}
		cs[0].Edges[1] = false
		cs[0].Healthy = false

		sh := Aggregate(cs, 98)
		want := float64(3*n-1) / float64(3*n) * 100
		assert.InDelta(t, want, sh.Percent, 1e-9, "n=%d", n)
		assert.Equal(t, 3*n-1, sh.HealthyEdges)
		assert.Equal(t, 3*n, sh.TotalEdges)
		assert.Equal(t, want >= 98, sh.Healthy, "n=%d", n)
	}
}

func TestAggregate_SeparateThreshold(t *testing.T) {
	cs := []Classification{{Edges: [3]bool{true, true, false}}}
	assert.False(t, Aggregate(cs, 98).Healthy)
	assert.True(t, Aggregate(cs, 60).Healthy)
}

func TestAggregate_Empty(t *testing.T) {
	sh := Aggregate(nil, 98)
	assert.Equal(t, 0.0, sh.Percent)
	assert.False(t, sh.Healthy)
}
