// Package provider implements the HTTP transports used to read indexer heights.
//
// This package contains:
//   - Provider interface: health and lifecycle shared by every transport
//   - GraphQLProvider: GraphQL over HTTP POST
//   - ProviderMonitor: latency and rate-limit tracking
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoData is returned when a GraphQL response carries no data object.
var ErrNoData = errors.New("graphql response has no data")

// ErrInvalidBody is returned when a 200 response is not a JSON document.
var ErrInvalidBody = errors.New("graphql response is not json")

// Provider defines the health and lifecycle surface of a transport.
type Provider interface {
	// GetName returns provider identifier (e.g., "envio", "indexer")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Close cleans up resources
	Close() error
}

// Querier executes GraphQL queries.
type Querier interface {
	Provider

	// Query posts a GraphQL document and returns the raw data object.
	Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}
