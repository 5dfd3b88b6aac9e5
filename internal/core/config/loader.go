package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// ErrMissingEndpoint is returned when a GraphQL endpoint is not configured.
var ErrMissingEndpoint = errors.New("missing required endpoint: fast or downstream url")

// PollIntervals are the refresh presets offered to dashboard users.
var PollIntervals = []time.Duration{
	time.Second,
	5 * time.Second,
	10 * time.Second,
	15 * time.Second,
	30 * time.Second,
	time.Minute,
}

// DefaultThresholds are used for every threshold key absent from the file.
var DefaultThresholds = ThresholdConfig{
	EdgePercent:          15,
	SystemHealthyPercent: 98,
	DegradedFloor:        90,
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{Thresholds: DefaultThresholds}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads configuration from a YAML file. A .env file next to the
// process is loaded first so its variables can be referenced as ${VAR}.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, applies defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	// Thresholds are seeded before decoding so an explicit 0 survives.
	cfg := AppConfig{Thresholds: DefaultThresholds}
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields and normalises chain ids. Thresholds are
// left alone because 0 is a valid value for each of them.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 5 * time.Second
	}

	if c.Sources.Fast.Name == "" {
		c.Sources.Fast.Name = "Envio"
	}
	if c.Sources.Downstream.Name == "" {
		c.Sources.Downstream.Name = "Indexer"
	}
	for _, s := range []*GraphQLSourceConfig{&c.Sources.Fast, &c.Sources.Downstream} {
		if s.Timeout == 0 {
			s.Timeout = 10 * time.Second
		}
	}

	rpc := &c.Sources.RPC
	if rpc.Name == "" {
		rpc.Name = "RPC"
	}
	if rpc.Mode == "" {
		rpc.Mode = RPCModeNode
	}
	if rpc.Timeout == 0 {
		rpc.Timeout = 10 * time.Second
	}
	if rpc.CacheTTL == 0 {
		rpc.CacheTTL = 2 * time.Second
	}
	if rpc.MockMaxOffset == 0 {
		rpc.MockMaxOffset = 100
	}
	if rpc.Concurrency == 0 {
		rpc.Concurrency = 8
	}

	if c.Alert.Kind == "" {
		c.Alert.Kind = "slack"
	}
	if c.Alert.Schedule == "" {
		c.Alert.Schedule = "0 */5 * * * *"
	}
	if c.Alert.Timeout == 0 {
		c.Alert.Timeout = 25 * time.Second
	}
	if c.Alert.Policy == "" {
		c.Alert.Policy = AlertPolicyNone
	}
	if c.Alert.Cooldown == 0 {
		c.Alert.Cooldown = 30 * time.Minute
	}

	if len(c.Chains) == 0 {
		c.Chains = domain.DefaultChains()
	}
	for i := range c.Chains {
		if id, ok := domain.NormalizeChainID(c.Chains[i].ID); ok {
			c.Chains[i].ID = id
		}
		if c.Chains[i].Name == "" {
			if name, ok := domain.ChainIDToName[c.Chains[i].ID]; ok {
				c.Chains[i].Name = name
			} else {
				c.Chains[i].Name = "Chain " + c.Chains[i].ID
			}
		}
	}
	c.Thresholds.EdgePercent = RoundThreshold(c.Thresholds.EdgePercent)
}

// Validate checks value ranges. Endpoint presence is checked separately by
// RequireEndpoints because request-time overrides may supply them.
func (c *AppConfig) Validate() error {
	if err := ValidateThreshold(c.Thresholds.EdgePercent); err != nil {
		return err
	}
	if p := c.Thresholds.SystemHealthyPercent; p < 0 || p > 100 {
		return fmt.Errorf("system_healthy_percent must be within [0, 100], got %v", p)
	}
	if p := c.Thresholds.DegradedFloor; p < 0 || p > 100 {
		return fmt.Errorf("degraded_floor must be within [0, 100], got %v", p)
	}
	if err := ValidatePollInterval(c.Poll.Interval); err != nil {
		return err
	}

	switch c.Sources.RPC.Mode {
	case RPCModeNode, RPCModeMock, RPCModeNone:
	default:
		return fmt.Errorf("unknown rpc mode %q", c.Sources.RPC.Mode)
	}
	switch c.Alert.Policy {
	case AlertPolicyNone, AlertPolicyCooldown:
	default:
		return fmt.Errorf("unknown alert policy %q", c.Alert.Policy)
	}
	switch c.Alert.Kind {
	case "slack", "webhook":
	default:
		return fmt.Errorf("unknown alert kind %q", c.Alert.Kind)
	}
	if c.Alert.PendingCycles < 0 {
		return fmt.Errorf("pending_cycles must not be negative")
	}

	seen := make(map[domain.ChainID]struct{}, len(c.Chains))
	for _, ch := range c.Chains {
		if ch.ID == "" {
			return fmt.Errorf("chain %q has no id", ch.Name)
		}
		if _, ok := domain.NormalizeChainID(ch.ID); !ok {
			return fmt.Errorf("chain %q: id %q is not a decimal or 0x-prefixed number", ch.Name, ch.ID)
		}
		if _, dup := seen[ch.ID]; dup {
			return fmt.Errorf("duplicate chain id %s", ch.ID)
		}
		seen[ch.ID] = struct{}{}
	}
	return nil
}

// RequireEndpoints fails when either GraphQL endpoint is missing.
func (c *AppConfig) RequireEndpoints() error {
	if c.Sources.Fast.URL == "" || c.Sources.Downstream.URL == "" {
		return ErrMissingEndpoint
	}
	return nil
}

// ValidateThreshold checks a per-edge threshold percentage.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 100 {
		return fmt.Errorf("threshold must be within [0, 100], got %v", t)
	}
	return nil
}

// RoundThreshold keeps six decimal places.
func RoundThreshold(t float64) float64 {
	return math.Round(t*1e6) / 1e6
}

// ValidatePollInterval checks that d is one of PollIntervals.
func ValidatePollInterval(d time.Duration) error {
	if !slices.Contains(PollIntervals, d) {
		return fmt.Errorf("poll interval %s is not one of %v", d, PollIntervals)
	}
	return nil
}
