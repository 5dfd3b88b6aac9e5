package throttle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockFetcher struct {
	heights   map[string]uint64
	err       error
	callCount atomic.Int32
}

func (m *mockFetcher) LatestHeight(ctx context.Context, chainID string) (uint64, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return m.heights[chainID], nil
}

func TestHeadCache_CachesResult(t *testing.T) {
	fetcher := &mockFetcher{heights: map[string]uint64{"1": 1000}}
	cache := NewHeadCache(fetcher, 3*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cache.LatestHeight(ctx, "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 1000 {
			t.Errorf("expected 1000, got %d", got)
		}
	}
	if n := fetcher.callCount.Load(); n != 1 {
		t.Errorf("expected 1 fetch, got %d", n)
	}
}

func TestHeadCache_PerChain(t *testing.T) {
	fetcher := &mockFetcher{heights: map[string]uint64{"1": 1000, "10": 2000}}
	cache := NewHeadCache(fetcher, time.Minute)
	ctx := context.Background()

	a, _ := cache.LatestHeight(ctx, "1")
	b, _ := cache.LatestHeight(ctx, "10")
	if a != 1000 || b != 2000 {
		t.Errorf("expected 1000/2000, got %d/%d", a, b)
	}
	if n := fetcher.callCount.Load(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
}

func TestHeadCache_ExpiresAfterTTL(t *testing.T) {
	fetcher := &mockFetcher{heights: map[string]uint64{"1": 1000}}
	cache := NewHeadCache(fetcher, 3*time.Second)
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := cache.LatestHeight(ctx, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(4 * time.Second)
	fetcher.heights["1"] = 1001

	got, err := cache.LatestHeight(ctx, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1001 {
		t.Errorf("expected fresh value 1001, got %d", got)
	}
}

func TestHeadCache_ErrorsNotCached(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("rpc down")}
	cache := NewHeadCache(fetcher, time.Minute)
	ctx := context.Background()

	if _, err := cache.LatestHeight(ctx, "1"); err == nil {
		t.Fatal("expected error")
	}
	fetcher.err = nil
	fetcher.heights = map[string]uint64{"1": 5}
	if got, err := cache.LatestHeight(ctx, "1"); err != nil || got != 5 {
		t.Errorf("expected 5, got %d (%v)", got, err)
	}
}
