package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/infra/rpc/provider"
)

const (
	// FastIndexerQuery reads chain progress from a HyperIndex-style service.
	FastIndexerQuery = `{
  chain_metadata {
    latest_processed_block
    chain_id
    num_events_processed
  }
}`

	// DownstreamQuery reads chain progress from the query-serving indexer.
	DownstreamQuery = `{
  eventsRegistry {
    chainId
    blockNumber
  }
}`
)

// flexUint accepts a JSON number or a numeric string. Anything else,
// including null, leaves it invalid.
type flexUint struct {
	value uint64
	valid bool
}

func (f *flexUint) UnmarshalJSON(b []byte) error {
	f.value, f.valid = parseUint(unquote(b))
	return nil
}

// flexID accepts a chain id as a JSON number, a decimal string or a hex
// string and normalises it to a decimal string.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if s == "null" {
		*f = ""
		return nil
	}
	if v, ok := parseUint(s); ok {
		*f = flexID(strconv.FormatUint(v, 10))
		return nil
	}
	id, _ := domain.NormalizeChainID(s)
	*f = flexID(id)
	return nil
}

func unquote(b []byte) string {
	s := string(bytes.TrimSpace(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func parseUint(s string) (uint64, bool) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, true
	}
	// Some services encode integers as floats, e.g. 1.8e+07
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
		return 0, false
	}
	return uint64(f), true
}

// queryError marks responses that arrived but cannot be read as malformed.
// Transport and status errors pass through unchanged.
func queryError(name string, err error) error {
	if errors.Is(err, provider.ErrNoData) || errors.Is(err, provider.ErrInvalidBody) {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, name, err)
	}
	return err
}

// FastIndexerSource reads the fast indexer's chain_metadata table.
type FastIndexerSource struct {
	client provider.Querier
}

// NewFastIndexerSource creates a fast indexer source on top of a GraphQL client.
func NewFastIndexerSource(client provider.Querier) *FastIndexerSource {
	return &FastIndexerSource{client: client}
}

func (s *FastIndexerSource) Name() string { return s.client.GetName() }

// FetchHeights returns latest processed blocks and event counts per chain.
func (s *FastIndexerSource) FetchHeights(ctx context.Context) (IndexerHeights, error) {
	data, err := s.client.Query(ctx, FastIndexerQuery, nil)
	if err != nil {
		return IndexerHeights{}, queryError(s.Name(), err)
	}

	var resp struct {
		ChainMetadata *[]struct {
			LatestProcessedBlock flexUint `json:"latest_processed_block"`
			ChainID              flexID   `json:"chain_id"`
			NumEventsProcessed   flexUint `json:"num_events_processed"`
		} `json:"chain_metadata"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return IndexerHeights{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.Name(), err)
	}
	if resp.ChainMetadata == nil {
		return IndexerHeights{}, fmt.Errorf("%w: %s: missing chain_metadata", ErrMalformedResponse, s.Name())
	}

	out := IndexerHeights{
		Heights: make(map[domain.ChainID]uint64),
		Events:  make(map[domain.ChainID]uint64),
	}
	for _, row := range *resp.ChainMetadata {
		id := string(row.ChainID)
		if id == "" {
			continue
		}
		if row.LatestProcessedBlock.valid {
			out.Heights[id] = max(out.Heights[id], row.LatestProcessedBlock.value)
		}
		if row.NumEventsProcessed.valid {
			out.Events[id] = row.NumEventsProcessed.value
		}
	}
	return out, nil
}

// DownstreamSource reads the downstream indexer's eventsRegistry table.
type DownstreamSource struct {
	client provider.Querier
}

// NewDownstreamSource creates a downstream indexer source on top of a GraphQL client.
func NewDownstreamSource(client provider.Querier) *DownstreamSource {
	return &DownstreamSource{client: client}
}

func (s *DownstreamSource) Name() string { return s.client.GetName() }

// FetchHeights returns the highest registered block per chain.
func (s *DownstreamSource) FetchHeights(ctx context.Context) (IndexerHeights, error) {
	data, err := s.client.Query(ctx, DownstreamQuery, nil)
	if err != nil {
		return IndexerHeights{}, queryError(s.Name(), err)
	}

	var resp struct {
		EventsRegistry *[]struct {
			ChainID     flexID   `json:"chainId"`
			BlockNumber flexUint `json:"blockNumber"`
		} `json:"eventsRegistry"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return IndexerHeights{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.Name(), err)
	}
	if resp.EventsRegistry == nil {
		return IndexerHeights{}, fmt.Errorf("%w: %s: missing eventsRegistry", ErrMalformedResponse, s.Name())
	}

	out := IndexerHeights{Heights: make(map[domain.ChainID]uint64)}
	for _, row := range *resp.EventsRegistry {
		id := string(row.ChainID)
		if id == "" || !row.BlockNumber.valid {
			continue
		}
		out.Heights[id] = max(out.Heights[id], row.BlockNumber.value)
	}
	return out, nil
}
