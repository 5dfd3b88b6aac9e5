package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
)

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recordingAlerter) Send(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

var (
	healthy   = domain.SyncStatus{FastVsAuthoritative: 100, DownstreamVsFast: 100, DownstreamVsAuthoritative: 100}
	unhealthy = domain.SyncStatus{FastVsAuthoritative: 50, DownstreamVsFast: 100, DownstreamVsAuthoritative: 50}
)

func TestNotifier_NoSuppressionAlertsEveryCycle(t *testing.T) {
	rec := &recordingAlerter{}
	n := NewNotifier(rec, NotifierConfig{ThresholdPercent: 15}, testLogger())

	evals := []Evaluation{
		{ChainID: "1", ChainName: "Ethereum", Status: unhealthy},
		{ChainID: "10", ChainName: "Optimism", Status: healthy},
	}
	for range 3 {
		res := n.Notify(context.Background(), "c", evals)
		assert.Equal(t, Result{Sent: 1}, res)
	}

	require.Len(t, rec.alerts, 3)
	assert.Equal(t, KindSync, rec.alerts[0].Kind)
	assert.Equal(t,
		"🚨 Alert: Sync issues detected for Ethereum\nEnvio → RPC: 50.00%\nIndexer → Envio: 100.00%\nIndexer → RPC: 50.00%",
		rec.alerts[0].Text)
}

func TestNotifier_SendFailureSwallowed(t *testing.T) {
	rec := &recordingAlerter{err: errors.New("connection refused")}
	n := NewNotifier(rec, NotifierConfig{ThresholdPercent: 15}, testLogger())

	res := n.Notify(context.Background(), "c", []Evaluation{
		{ChainID: "1", ChainName: "Ethereum", Status: unhealthy},
		{ChainID: "10", ChainName: "Optimism", Status: unhealthy},
	})
	assert.Equal(t, Result{Failed: 2}, res)
}

func TestNotifier_CustomNames(t *testing.T) {
	rec := &recordingAlerter{}
	n := NewNotifier(rec, NotifierConfig{
		ThresholdPercent: 15,
		Names:            reconcile.SourceNames{Authoritative: "Node", Fast: "Fast", Downstream: "Query"},
	}, testLogger())

	n.Notify(context.Background(), "c", []Evaluation{{ChainID: "1", ChainName: "Ethereum", Status: unhealthy}})
	require.Len(t, rec.alerts, 1)
	assert.Contains(t, rec.alerts[0].Text, "Fast → Node: 50.00%")
	assert.Contains(t, rec.alerts[0].Text, "Query → Fast: 100.00%")
}

func TestNotifier_CooldownWithRecovery(t *testing.T) {
	rec := &recordingAlerter{}
	store := NewMemoryStore()
	n := NewNotifier(rec, NotifierConfig{
		ThresholdPercent: 15,
		Policy:           Cooldown{PendingCycles: 1, Window: time.Hour, NotifyRecovery: true},
		Store:            store,
	}, testLogger())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	eth := func(s domain.SyncStatus) []Evaluation {
		return []Evaluation{{ChainID: "1", ChainName: "Ethereum", Status: s}}
	}

	assert.Equal(t, Result{Sent: 1}, n.Notify(context.Background(), "a", eth(unhealthy)))
	now = now.Add(5 * time.Minute)
	assert.Equal(t, Result{Suppressed: 1}, n.Notify(context.Background(), "b", eth(unhealthy)))
	now = now.Add(5 * time.Minute)
	assert.Equal(t, Result{Sent: 1}, n.Notify(context.Background(), "c", eth(healthy)))

	require.Len(t, rec.alerts, 2)
	assert.Equal(t, KindRecovery, rec.alerts[1].Kind)
	assert.Contains(t, rec.alerts[1].Text, "✅ Recovered: Ethereum")

	s, err := store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, PhaseRecovered, s.Phase)
}

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func TestRedisStore_SurvivesRestart(t *testing.T) {
	kv := newFakeKV()
	policy := Cooldown{PendingCycles: 1, Window: time.Hour}
	evals := []Evaluation{{ChainID: "1", ChainName: "Ethereum", Status: unhealthy}}

	first := &recordingAlerter{}
	n := NewNotifier(first, NotifierConfig{ThresholdPercent: 15, Policy: policy, Store: NewRedisStore(kv, 2*time.Hour)}, testLogger())
	n.Notify(context.Background(), "a", evals)
	require.Len(t, first.alerts, 1)
	assert.Equal(t, 2*time.Hour, kv.ttls["syncwatch:alert:1"])

	// A new process sharing the store stays inside the cooldown window.
	second := &recordingAlerter{}
	n = NewNotifier(second, NotifierConfig{ThresholdPercent: 15, Policy: policy, Store: NewRedisStore(kv, 2*time.Hour)}, testLogger())
	res := n.Notify(context.Background(), "b", evals)
	assert.Equal(t, Result{Suppressed: 1}, res)
	assert.Empty(t, second.alerts)
}

func TestRedisStore_UnknownChain(t *testing.T) {
	s, err := NewRedisStore(newFakeKV(), time.Hour).Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, ChainState{}, s)
}
