package config

import (
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig    `yaml:"server"`
	Logging    LoggingConfig   `yaml:"logging"`
	Poll       PollConfig      `yaml:"poll"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Sources    SourcesConfig   `yaml:"sources"`
	Alert      AlertConfig     `yaml:"alert"`
	Chains     []domain.Chain  `yaml:"chains"`
}

// ServerConfig holds HTTP and gRPC listener settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// PollConfig holds the dashboard refresh interval.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ThresholdConfig holds the two independent health thresholds.
type ThresholdConfig struct {
	// EdgePercent is the deficit an edge may have before it is unhealthy.
	EdgePercent float64 `yaml:"edge_percent"`
	// SystemHealthyPercent is the share of healthy edges the system needs.
	SystemHealthyPercent float64 `yaml:"system_healthy_percent"`
	// DegradedFloor splits degraded from critical for unhealthy edges.
	DegradedFloor float64 `yaml:"degraded_floor"`
}

// SourcesConfig holds the three height sources.
type SourcesConfig struct {
	Fast       GraphQLSourceConfig `yaml:"fast"`
	Downstream GraphQLSourceConfig `yaml:"downstream"`
	RPC        RPCSourceConfig     `yaml:"rpc"`
}

// GraphQLSourceConfig holds one GraphQL indexer endpoint.
type GraphQLSourceConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RPCMode selects how authoritative heights are produced.
type RPCMode string

const (
	RPCModeNode RPCMode = "rpc"  // eth_blockNumber against each chain's rpc_url
	RPCModeMock RPCMode = "mock" // fast height plus a random offset
	RPCModeNone RPCMode = "none" // always unavailable
)

// RPCSourceConfig holds authoritative height settings.
type RPCSourceConfig struct {
	Name          string        `yaml:"name"`
	Mode          RPCMode       `yaml:"mode"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	MockMaxOffset uint64        `yaml:"mock_max_offset"`
	Concurrency   int           `yaml:"concurrency"`
}

// AlertPolicy selects cross-cycle alert suppression.
type AlertPolicy string

const (
	AlertPolicyNone     AlertPolicy = "none"
	AlertPolicyCooldown AlertPolicy = "cooldown"
)

// AlertConfig holds alerting settings. An empty WebhookURL disables alerts.
type AlertConfig struct {
	WebhookURL     string        `yaml:"webhook_url"`
	Kind           string        `yaml:"kind"` // slack, webhook
	Schedule       string        `yaml:"schedule"`
	Timeout        time.Duration `yaml:"timeout"`
	Policy         AlertPolicy   `yaml:"policy"`
	Cooldown       time.Duration `yaml:"cooldown"`
	PendingCycles  int           `yaml:"pending_cycles"`
	NotifyRecovery bool          `yaml:"notify_recovery"`
	RedisURL       string        `yaml:"redis_url"`
}

// Enabled reports whether an alert transport is configured.
func (c AlertConfig) Enabled() bool {
	return c.WebhookURL != ""
}
