package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_FAST_URL", "https://indexer.example/v1/graphql")
	defer os.Unsetenv("TEST_FAST_URL")

	// Create temp config file
	configContent := `
sources:
  fast:
    url: ${TEST_FAST_URL}
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sources.Fast.URL != "https://indexer.example/v1/graphql" {
		t.Errorf("Expected fast url from env, got %s", cfg.Sources.Fast.URL)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", cfg.Poll.Interval)
	}
	if cfg.Thresholds.EdgePercent != 15 {
		t.Errorf("expected edge threshold 15, got %v", cfg.Thresholds.EdgePercent)
	}
	if cfg.Thresholds.SystemHealthyPercent != 98 {
		t.Errorf("expected system threshold 98, got %v", cfg.Thresholds.SystemHealthyPercent)
	}
	if cfg.Thresholds.DegradedFloor != 90 {
		t.Errorf("expected degraded floor 90, got %v", cfg.Thresholds.DegradedFloor)
	}
	if cfg.Sources.RPC.Mode != RPCModeNode {
		t.Errorf("expected rpc mode, got %s", cfg.Sources.RPC.Mode)
	}
	if cfg.Alert.Policy != AlertPolicyNone {
		t.Errorf("expected no suppression by default, got %s", cfg.Alert.Policy)
	}
	if cfg.Alert.Enabled() {
		t.Error("alerting should be disabled without a webhook")
	}
	if len(cfg.Chains) != 16 {
		t.Errorf("expected 16 default chains, got %d", len(cfg.Chains))
	}
	if !errors.Is(cfg.RequireEndpoints(), ErrMissingEndpoint) {
		t.Error("expected missing endpoint error")
	}
}

func TestParse_ChainNames(t *testing.T) {
	cfg, err := Parse([]byte(`
chains:
  - id: "10"
  - id: "999"
  - id: "8453"
    name: Base Mainnet
    rpc_url: https://base.example
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []string{"Optimism", "Chain 999", "Base Mainnet"}
	for i, name := range want {
		if cfg.Chains[i].Name != name {
			t.Errorf("chain %d: expected %q, got %q", i, name, cfg.Chains[i].Name)
		}
	}
	if cfg.Chains[2].RPCURL != "https://base.example" {
		t.Errorf("expected rpc url, got %q", cfg.Chains[2].RPCURL)
	}
}

func TestParse_ThresholdPrecision(t *testing.T) {
	cfg, err := Parse([]byte("thresholds:\n  edge_percent: 0.0000014\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Thresholds.EdgePercent != 0.000001 {
		t.Errorf("expected six decimals, got %v", cfg.Thresholds.EdgePercent)
	}
}

func TestParse_ExplicitZeroThresholds(t *testing.T) {
	cfg, err := Parse([]byte(`
thresholds:
  edge_percent: 0
  system_healthy_percent: 0
  degraded_floor: 0
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.Thresholds; got != (ThresholdConfig{}) {
		t.Errorf("expected explicit zeros to survive, got %+v", got)
	}

	// Keys left out still take their defaults.
	cfg, err = Parse([]byte("thresholds:\n  edge_percent: 0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Thresholds.EdgePercent != 0 || cfg.Thresholds.SystemHealthyPercent != 98 || cfg.Thresholds.DegradedFloor != 90 {
		t.Errorf("unexpected thresholds %+v", cfg.Thresholds)
	}
}

func TestParse_ChainIDNormalisation(t *testing.T) {
	_, err := Parse([]byte(`
chains:
  - id: "0x89"
  - id: "0137"
    name: Polygon Again
  - id: " 10 "
`))
	if err == nil {
		t.Fatal("expected duplicate error once 0x89 and 0137 both normalise to 137")
	}

	cfg, err := Parse([]byte(`
chains:
  - id: "0x89"
  - id: "0010"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Chains[0].ID != "137" || cfg.Chains[0].Name != "Polygon" {
		t.Errorf("expected 137/Polygon, got %+v", cfg.Chains[0])
	}
	if cfg.Chains[1].ID != "10" || cfg.Chains[1].Name != "Optimism" {
		t.Errorf("expected 10/Optimism, got %+v", cfg.Chains[1])
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"threshold":      "thresholds:\n  edge_percent: 150\n",
		"interval":       "poll:\n  interval: 7s\n",
		"rpc mode":       "sources:\n  rpc:\n    mode: archive\n",
		"policy":         "alert:\n  policy: forever\n",
		"kind":           "alert:\n  kind: email\n",
		"duplicate":      "chains:\n  - id: \"1\"\n  - id: \"1\"\n",
		"pending cycles": "alert:\n  pending_cycles: -1\n",
		"chain id":       "chains:\n  - id: polygon\n",
	}
	for name, content := range cases {
		if _, err := Parse([]byte(content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidatePollInterval(t *testing.T) {
	for _, d := range PollIntervals {
		if err := ValidatePollInterval(d); err != nil {
			t.Errorf("%s should be accepted: %v", d, err)
		}
	}
	if err := ValidatePollInterval(2 * time.Second); err == nil {
		t.Error("2s should be rejected")
	}
}
