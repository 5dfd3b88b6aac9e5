package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/indexing/throttle"
)

// blockNumberClient is the part of ethclient.Client the node source uses.
type blockNumberClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// DialFunc opens a client for an RPC endpoint.
type DialFunc func(ctx context.Context, url string) (blockNumberClient, error)

func dialEthClient(ctx context.Context, url string) (blockNumberClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NodeClient fetches eth_blockNumber from each chain's RPC endpoint.
// Clients are dialled on first use and reused across cycles.
type NodeClient struct {
	urls    map[domain.ChainID]string
	dial    DialFunc
	clients *xsync.Map[string, blockNumberClient]
	dialMu  sync.Mutex
}

// NewNodeClient creates a node client for the given registry.
func NewNodeClient(chains []domain.Chain) *NodeClient {
	urls := make(map[domain.ChainID]string, len(chains))
	for _, ch := range chains {
		if ch.RPCURL != "" {
			urls[ch.ID] = ch.RPCURL
		}
	}
	return &NodeClient{
		urls:    urls,
		dial:    dialEthClient,
		clients: xsync.NewMap[string, blockNumberClient](),
	}
}

// LatestHeight implements throttle.HeadFetcher.
func (n *NodeClient) LatestHeight(ctx context.Context, chainID string) (uint64, error) {
	url, ok := n.urls[chainID]
	if !ok {
		return 0, fmt.Errorf("chain %s: %w", chainID, ErrNoRPC)
	}

	client, err := n.client(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("dial rpc for chain %s: %w", chainID, err)
	}

	height, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber for chain %s: %w", chainID, err)
	}
	return height, nil
}

func (n *NodeClient) client(ctx context.Context, url string) (blockNumberClient, error) {
	if c, ok := n.clients.Load(url); ok {
		return c, nil
	}

	n.dialMu.Lock()
	defer n.dialMu.Unlock()
	if c, ok := n.clients.Load(url); ok {
		return c, nil
	}

	c, err := n.dial(ctx, url)
	if err != nil {
		return nil, err
	}
	n.clients.Store(url, c)
	return c, nil
}

// Close closes every dialled client.
func (n *NodeClient) Close() {
	n.clients.Range(func(url string, c blockNumberClient) bool {
		c.Close()
		n.clients.Delete(url)
		return true
	})
}

// NodeSource serves authoritative heights from RPC nodes through a head cache.
type NodeSource struct {
	heads   *throttle.HeadCache
	timeout time.Duration
}

// NewNodeSource wraps a head cache as a HeadSource. Each fetch is bounded by
// timeout; zero means only the caller's context applies.
func NewNodeSource(heads *throttle.HeadCache, timeout time.Duration) *NodeSource {
	return &NodeSource{heads: heads, timeout: timeout}
}

// Head returns the cached or freshly fetched chain tip.
func (s *NodeSource) Head(ctx context.Context, chain domain.Chain) (uint64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.heads.LatestHeight(ctx, chain.ID)
}

// MockSource simulates a live chain tip as the fast indexer height plus a
// random offset in [0, maxOffset). It stands in for deployments without
// RPC access.
type MockSource struct {
	maxOffset uint64
	offset    func(n uint64) uint64
}

// NewMockSource creates a mock authoritative source.
func NewMockSource(maxOffset uint64) *MockSource {
	return &MockSource{maxOffset: maxOffset, offset: rand.Uint64N}
}

// Derive returns fast plus a random offset, unavailable when fast is.
func (s *MockSource) Derive(_ domain.ChainID, fast domain.Height) domain.Height {
	if !fast.Available {
		return domain.Unavailable()
	}
	var off uint64
	if s.maxOffset > 0 {
		off = s.offset(s.maxOffset)
	}
	return domain.At(fast.Value + off)
}
