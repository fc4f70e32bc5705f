package config

import (
	"testing"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("WALLET_BRIDGE_URL", "http://localhost:9545")
	t.Setenv("NETWORK", "testnet")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, "https://fullnode.testnet.sui.io:443", cfg.LedgerRPCURL)
	assert.Equal(t, "", cfg.HistoryAPIEndpoint)
	assert.Equal(t, DefaultMetricsPort, cfg.MetricsPort)
	assert.Equal(t, 2, cfg.Tx.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Tx.RetryDelay)
	assert.False(t, cfg.Tx.Backoff)
	assert.Equal(t, 1, cfg.Session.InitRetries)
	assert.Equal(t, 2*time.Second, cfg.Session.InitRetryDelay)
	assert.Equal(t, 30*time.Minute, cfg.CoinMetadataTTL)
	assert.True(t, cfg.HistoryCircuit.Enabled)
	assert.Equal(t, logger.InfoLevel, cfg.LoggerConfig.Level)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("WALLET_BRIDGE_URL", "http://localhost:9545")
	t.Setenv("NETWORK", "devnet")
	t.Setenv("LEDGER_RPC_URL", "http://127.0.0.1:9000")
	t.Setenv("HISTORY_API_ENDPOINT", "https://history.example.com/")
	t.Setenv("TX_MAX_RETRIES", "0")
	t.Setenv("TX_RETRY_DELAY", "1s")
	t.Setenv("TX_RETRY_BACKOFF", "true")
	t.Setenv("HISTORY_CIRCUIT_THRESHOLD", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_COLORING", "false")
	t.Setenv("METRICS_API_KEY", "secret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000", cfg.LedgerRPCURL)
	assert.Equal(t, "https://history.example.com", cfg.HistoryAPIEndpoint)
	assert.Equal(t, 0, cfg.Tx.MaxRetries)
	assert.Equal(t, time.Second, cfg.Tx.RetryDelay)
	assert.True(t, cfg.Tx.Backoff)
	assert.Equal(t, 2, cfg.HistoryCircuit.Threshold)
	assert.Equal(t, logger.DebugLevel, cfg.LoggerConfig.Level)
	assert.False(t, cfg.LoggerConfig.Coloring)
	assert.Equal(t, "secret", cfg.MetricsAPIKey)
}

func TestFromEnvValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "Unknown network", key: "NETWORK", val: "localnet"},
		{name: "Bad ledger URL", key: "LEDGER_RPC_URL", val: "not a url"},
		{name: "Negative retries", key: "TX_MAX_RETRIES", val: "-1"},
		{name: "Bad delay", key: "TX_RETRY_DELAY", val: "soon"},
		{name: "Bad bool", key: "TX_RETRY_BACKOFF", val: "yes"},
		{name: "Zero TTL", key: "COIN_METADATA_TTL", val: "0s"},
		{name: "Zero threshold", key: "HISTORY_CIRCUIT_THRESHOLD", val: "0"},
		{name: "Bad log level", key: "LOG_LEVEL", val: "verbose"},
		{name: "Bad port", key: "METRICS_PORT", val: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WALLET_BRIDGE_URL", "http://localhost:9545")
			t.Setenv(tt.key, tt.val)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}

	t.Run("Wallet bridge required", func(t *testing.T) {
		t.Setenv("WALLET_BRIDGE_URL", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "WALLET_BRIDGE_URL")
	})
}
