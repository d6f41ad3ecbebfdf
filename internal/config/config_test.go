// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
	"github.com/rovshanmuradov/solana-launchpad/internal/retry"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{solanarpc.DevNet_RPC}, cfg.RPCList)
	assert.Equal(t, DefaultCluster, cfg.Cluster)
	assert.Equal(t, dex.ModeSimulation, cfg.AMMMode())
	assert.Equal(t, retry.DefaultConfig(), cfg.RetryPolicy())
	assert.Equal(t, portfolio.DefaultConfig(), cfg.DiscoveryPolicy())
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout())
	assert.Equal(t, 5*time.Minute, cfg.MetadataTTL())
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "launchpad.yaml", `
rpc_list:
  - https://rpc.example.com
cluster: mainnet-beta
wallet_file: wallets.csv
debug_logging: true
retry:
  max_retries: 5
  initial_backoff_ms: 250
discovery:
  signature_limit: 100
  concurrency: 4
amm:
  mode: simulation
server:
  addr: 127.0.0.1:9000
  cors_origins: ["http://localhost:3000"]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://rpc.example.com"}, cfg.RPCList)
	assert.Equal(t, "mainnet-beta", cfg.Cluster)
	assert.True(t, cfg.DebugLogging)
	assert.Equal(t, retry.Config{MaxRetries: 5, InitialBackoff: 250 * time.Millisecond}, cfg.RetryPolicy())
	assert.Equal(t, 100, cfg.DiscoveryPolicy().SignatureLimit)
	assert.Equal(t, 4, cfg.DiscoveryPolicy().Concurrency)
	assert.Equal(t, portfolio.DefaultTxBatchSize, cfg.DiscoveryPolicy().TxBatchSize)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "launchpad.json", `{"cluster": "testnet", "confirm_timeout_sec": 30}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{solanarpc.TestNet_RPC}, cfg.RPCList)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("LAUNCHPAD_RPC_LIST", "https://a.example.com, https://b.example.com")
	t.Setenv("LAUNCHPAD_PRIVATE_KEY", "secret")
	t.Setenv("LAUNCHPAD_RETRY_MAX_RETRIES", "7")
	t.Setenv("LAUNCHPAD_SERVER_ADDR", ":9999")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.RPCList)
	assert.Equal(t, "secret", cfg.PrivateKey)
	assert.Equal(t, 7, cfg.Retry.MaxRetries)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad rpc scheme", func(c *Config) { c.RPCList = []string{"ws://rpc.example.com"} }},
		{"rpc without host", func(c *Config) { c.RPCList = []string{"https://"} }},
		{"unknown cluster", func(c *Config) { c.Cluster = "moonnet" }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"zero concurrency", func(c *Config) { c.Discovery.Concurrency = 0 }},
		{"signature limit too high", func(c *Config) { c.Discovery.SignatureLimit = 5000 }},
		{"negative rps", func(c *Config) { c.Discovery.RPS = -1 }},
		{"negative metadata ttl", func(c *Config) { c.MetadataCacheTTL = -1 }},
		{"zero confirm timeout", func(c *Config) { c.ConfirmTimeoutSec = 0 }},
		{"unknown amm mode", func(c *Config) { c.AMM.Mode = "paper" }},
		{"empty server addr", func(c *Config) { c.Server.Addr = " " }},
		{"bad cors origin", func(c *Config) { c.Server.CORSOrigins = []string{"localhost"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsWildcardOrigin(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.AMM.Mode = "LIVE"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAcceptsDisabledMetadataCache(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.MetadataCacheTTL = 0
	assert.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.MetadataTTL())
}
