// Package throttle bounds how often upstream chain heads are fetched.
package throttle

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// HeadFetcher returns the latest block height of a chain.
type HeadFetcher interface {
	LatestHeight(ctx context.Context, chainID string) (uint64, error)
}

type cachedHead struct {
	height   uint64
	cachedAt time.Time
}

// HeadCache caches chain heads per chain to reduce redundant RPC calls.
// Several dashboard sessions polling at 1s share one fetch per TTL window.
type HeadCache struct {
	fetcher HeadFetcher
	ttl     time.Duration
	heads   *xsync.Map[string, cachedHead]
	now     func() time.Time
}

// NewHeadCache creates a new head cache with the given TTL.
// A non-positive TTL disables caching.
func NewHeadCache(fetcher HeadFetcher, ttl time.Duration) *HeadCache {
	return &HeadCache{
		fetcher: fetcher,
		ttl:     ttl,
		heads:   xsync.NewMap[string, cachedHead](),
		now:     time.Now,
	}
}

// LatestHeight returns the cached chain head if within TTL, otherwise fetches fresh.
// Errors are never cached.
func (c *HeadCache) LatestHeight(ctx context.Context, chainID string) (uint64, error) {
	if c.ttl > 0 {
		if h, ok := c.heads.Load(chainID); ok && c.now().Sub(h.cachedAt) < c.ttl && h.height > 0 {
			return h.height, nil
		}
	}

	head, err := c.fetcher.LatestHeight(ctx, chainID)
	if err != nil {
		return 0, err
	}

	if c.ttl > 0 {
		c.heads.Store(chainID, cachedHead{height: head, cachedAt: c.now()})
	}
	return head, nil
}
