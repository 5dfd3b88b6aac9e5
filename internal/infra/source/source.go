// Package source reads block heights from the three upstream sources and
// assembles them into per-chain readings.
//
// Failed reads never fail a chain: they become unavailable heights. Only a
// total failure of the indexer services fails a poll cycle.
package source

import (
	"context"
	"errors"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

var (
	// ErrPipeline marks a poll cycle that produced no usable data.
	ErrPipeline = errors.New("pipeline failure")

	// ErrMalformedResponse is returned when a service answers with an unexpected shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoRPC is returned for chains without an RPC endpoint.
	ErrNoRPC = errors.New("no rpc url configured")
)

// IndexerHeights is what one indexer service reports for every chain it knows.
type IndexerHeights struct {
	Heights map[domain.ChainID]uint64
	Events  map[domain.ChainID]uint64
}

// Height returns the height of a chain, unavailable when the service did not report it.
func (h IndexerHeights) Height(chainID domain.ChainID) domain.Height {
	v, ok := h.Heights[chainID]
	if !ok {
		return domain.Unavailable()
	}
	return domain.At(v)
}

// IndexerSource is an indexer service reporting heights for many chains in one call.
type IndexerSource interface {
	Name() string
	FetchHeights(ctx context.Context) (IndexerHeights, error)
}

// HeadSource returns the authoritative chain tip of one chain.
type HeadSource interface {
	Head(ctx context.Context, chain domain.Chain) (uint64, error)
}

// DerivedSource computes an authoritative height from the fast indexer height
// of the same cycle instead of asking a node.
type DerivedSource interface {
	Derive(chainID domain.ChainID, fast domain.Height) domain.Height
}
