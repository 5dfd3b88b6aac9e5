package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/syncwatch/internal/core/config"
	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
	"github.com/vietddude/syncwatch/internal/infra/source"
)

// =============================================================================
// Mocks
// =============================================================================

type fakeCollector struct {
	mu       sync.Mutex
	chains   []domain.Chain
	readings []domain.ChainReading
	err      error
	calls    []source.Endpoints

	// startedAt stamps snapshots when set; otherwise time.Now is used.
	startedAt time.Time
}

func (f *fakeCollector) Collect(_ context.Context, ep source.Endpoints) (*source.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ep)
	if f.err != nil {
		return nil, f.err
	}
	started := f.startedAt
	if started.IsZero() {
		started = time.Now()
	}
	return &source.Snapshot{
		CycleID:   "cycle",
		StartedAt: started,
		Readings:  f.readings,
	}, nil
}

func (f *fakeCollector) Chains() []domain.Chain { return f.chains }

func (f *fakeCollector) lastCall() source.Endpoints {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reading(id string, auth, fast, down uint64) domain.ChainReading {
	return domain.ChainReading{
		ChainID:       id,
		Authoritative: domain.At(auth),
		FastIndexer:   domain.At(fast),
		Downstream:    domain.At(down),
	}
}

var (
	testChains = []domain.Chain{{ID: "1", Name: "Ethereum"}, {ID: "10", Name: "Optimism"}}
	defaultTh  = Thresholds{EdgePercent: 15, SystemHealthyPercent: 98, DegradedFloor: 90}
)

func newTestMonitor(c *fakeCollector) *Monitor {
	return NewMonitor(c, source.Endpoints{FastURL: "http://envio", DownstreamURL: "http://indexer"}, defaultTh, testLogger())
}

// =============================================================================
// Report
// =============================================================================

func TestBuildReport_AllHealthy(t *testing.T) {
	snap := &source.Snapshot{CycleID: "c1", Readings: []domain.ChainReading{
		reading("1", 1000, 1000, 1000),
		reading("10", 500, 500, 500),
	}}

	r := BuildReport(snap, testChains, defaultTh)
	assert.Equal(t, reconcile.StatusHealthy, r.Status)
	assert.True(t, r.System.Healthy)
	assert.Equal(t, 100.0, r.System.Percent)
	assert.Equal(t, []string{"1", "10"}, r.Order)
	assert.Equal(t, "Ethereum", r.Chains["1"].Name)
	assert.Empty(t, r.Chains["1"].Skew)
}

func TestBuildReport_LaggingDownstream(t *testing.T) {
	snap := &source.Snapshot{Readings: []domain.ChainReading{
		reading("1", 1000, 1000, 500),
		reading("10", 500, 500, 500),
	}}

	r := BuildReport(snap, testChains, defaultTh)
	eth := r.Chains["1"]
	assert.Equal(t, reconcile.StatusCritical, eth.Status)
	assert.False(t, eth.Healthy)
	assert.Equal(t, uint64(500), eth.BlocksBehind.DownstreamVsFast)
	assert.Equal(t, uint64(0), eth.BlocksBehind.FastVsAuthoritative)
	assert.Equal(t, 50.0, eth.Edges["downstream_vs_fast"].Ratio)
	assert.Equal(t, reconcile.StatusHealthy, eth.Edges["fast_vs_authoritative"].Status)

	assert.Equal(t, reconcile.StatusCritical, r.Status)
	assert.Equal(t, 4, r.System.HealthyEdges)
	assert.InDelta(t, 4.0/6.0*100, r.System.Percent, 1e-9)
	assert.False(t, r.System.Healthy)
}

func TestBuildReport_DegradedTier(t *testing.T) {
	snap := &source.Snapshot{Readings: []domain.ChainReading{reading("1", 1000, 950, 950)}}
	r := BuildReport(snap, testChains, Thresholds{EdgePercent: 1, SystemHealthyPercent: 98, DegradedFloor: 90})
	assert.Equal(t, reconcile.StatusDegraded, r.Chains["1"].Status)
	assert.Equal(t, reconcile.StatusDegraded, r.Status)
}

func TestBuildReport_UnavailableAndSkew(t *testing.T) {
	snap := &source.Snapshot{
		Readings: []domain.ChainReading{{
			ChainID:       "1",
			Authoritative: domain.Unavailable(),
			FastIndexer:   domain.At(1000),
			Downstream:    domain.At(1010),
		}},
		SourceErrors: map[domain.Source]string{domain.SourceDownstream: "timeout"},
	}

	r := BuildReport(snap, testChains, defaultTh)
	eth := r.Chains["1"]
	assert.False(t, eth.Authoritative.Available)
	assert.Equal(t, uint64(0), eth.Authoritative.Height)
	assert.Equal(t, 0.0, eth.Sync.FastVsAuthoritative)
	assert.Equal(t, 100.0, eth.Sync.DownstreamVsFast)
	assert.Equal(t, []string{"downstream_vs_fast"}, eth.Skew)
	assert.Equal(t, "timeout", r.SourceErrors["downstream"])
}

func TestBuildReport_Empty(t *testing.T) {
	r := BuildReport(&source.Snapshot{}, nil, defaultTh)
	assert.Equal(t, reconcile.StatusCritical, r.Status)
	assert.Equal(t, 0.0, r.System.Percent)
	assert.False(t, r.System.Healthy)
}

func TestReport_Evaluations(t *testing.T) {
	snap := &source.Snapshot{Readings: []domain.ChainReading{
		reading("10", 100, 100, 100),
		reading("1", 100, 50, 50),
	}}
	evals := BuildReport(snap, testChains, defaultTh).Evaluations()
	require.Len(t, evals, 2)
	assert.Equal(t, "10", evals[0].ChainID)
	assert.Equal(t, "Ethereum", evals[1].ChainName)
	assert.Equal(t, 50.0, evals[1].Status.FastVsAuthoritative)
}

// =============================================================================
// Monitor
// =============================================================================

func TestMonitor_PollOverrides(t *testing.T) {
	c := &fakeCollector{chains: testChains, readings: []domain.ChainReading{reading("1", 100, 99, 99)}}
	m := newTestMonitor(c)

	_, err := m.Poll(context.Background(), PollOptions{})
	require.NoError(t, err)
	assert.Equal(t, source.Endpoints{FastURL: "http://envio", DownstreamURL: "http://indexer"}, c.lastCall())

	strict := 0.001
	r, err := m.Poll(context.Background(), PollOptions{FastURL: "http://other", Threshold: &strict})
	require.NoError(t, err)
	assert.Equal(t, "http://other", c.lastCall().FastURL)
	assert.Equal(t, "http://indexer", c.lastCall().DownstreamURL)
	assert.Equal(t, 0.001, r.ThresholdPercent)
	assert.False(t, r.Chains["1"].Healthy)

	assert.Nil(t, m.Latest(), "Poll must not replace the scheduled report")
}

func TestMonitor_PollMissingEndpoint(t *testing.T) {
	m := NewMonitor(&fakeCollector{}, source.Endpoints{FastURL: "http://envio"}, defaultTh, testLogger())
	_, err := m.Poll(context.Background(), PollOptions{})
	assert.ErrorIs(t, err, config.ErrMissingEndpoint)
}

func TestMonitor_PollInvalidThreshold(t *testing.T) {
	m := newTestMonitor(&fakeCollector{})
	bad := 150.0
	_, err := m.Poll(context.Background(), PollOptions{Threshold: &bad})
	assert.Error(t, err)
}

func TestMonitor_RefreshKeepsPreviousOnFailure(t *testing.T) {
	c := &fakeCollector{chains: testChains, readings: []domain.ChainReading{reading("1", 100, 100, 100)}}
	m := newTestMonitor(c)

	var hooked int
	m.OnReport(func(*Report) { hooked++ })

	first, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, m.Latest())
	assert.Equal(t, 1, hooked)

	c.err = errors.New("pipeline failure")
	_, err = m.Refresh(context.Background())
	require.Error(t, err)
	assert.Same(t, first, m.Latest())
	assert.Equal(t, 1, hooked)
}

func TestMonitor_RefreshIgnoresOlderCycle(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeCollector{
		chains:    testChains,
		readings:  []domain.ChainReading{reading("1", 1000, 1000, 1000)},
		startedAt: t0,
	}
	m := newTestMonitor(c)
	var hooks int
	m.OnReport(func(*Report) { hooks++ })

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	// A slower cycle that started earlier finishes last.
	c.mu.Lock()
	c.readings = []domain.ChainReading{reading("1", 1000, 10, 10)}
	c.startedAt = t0.Add(-time.Second)
	c.mu.Unlock()

	stale, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusCritical, stale.Status)

	latest := m.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, t0, latest.UpdatedAt)
	assert.Equal(t, reconcile.StatusHealthy, latest.Status)
	assert.Equal(t, 1, hooks)
}
