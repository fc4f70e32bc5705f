package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/speedrun-hq/paydesk/pkg/logger"
)

// Config holds the configuration for the dashboard service
type Config struct {
	Network            string
	LedgerRPCURL       string
	WalletBridgeURL    string
	HistoryAPIEndpoint string
	MetricsPort        string
	MetricsAPIKey      string
	// WalletAddress and AccountID select an identity to connect at startup
	WalletAddress      string
	AccountID          string
	CoinMetadataTTL    time.Duration
	Tx                 TxConfig
	Session            SessionConfig
	HistoryCircuit     CircuitBreakerConfig
	LoggerConfig       LoggerConfig
}

// TxConfig holds the transaction retry policy
type TxConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	Backoff    bool
}

// SessionConfig holds the client initialisation retry policy
type SessionConfig struct {
	InitRetries    int
	InitRetryDelay time.Duration
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment
func FromEnv() (*Config, error) {
	network, err := GetEnvNetwork()
	if err != nil {
		return nil, err
	}

	ledgerRPCURL, err := GetEnvLedgerRPCURL(network)
	if err != nil {
		return nil, err
	}

	walletBridgeURL, err := GetEnvWalletBridgeURL()
	if err != nil {
		return nil, err
	}

	historyEndpoint, err := GetEnvHistoryAPIEndpoint()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	coinMetadataTTL, err := GetEnvCoinMetadataTTL()
	if err != nil {
		return nil, err
	}

	txMaxRetries, err := GetEnvTxMaxRetries()
	if err != nil {
		return nil, err
	}

	txRetryDelay, err := GetEnvTxRetryDelay()
	if err != nil {
		return nil, err
	}

	txBackoff, err := GetEnvTxRetryBackoff()
	if err != nil {
		return nil, err
	}

	initRetries, err := GetEnvSessionInitRetries()
	if err != nil {
		return nil, err
	}

	initRetryDelay, err := GetEnvSessionInitRetryDelay()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvHistoryCircuitEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvHistoryCircuitThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvHistoryCircuitWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvHistoryCircuitReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	return &Config{
		Network:            network,
		LedgerRPCURL:       ledgerRPCURL,
		WalletBridgeURL:    walletBridgeURL,
		HistoryAPIEndpoint: historyEndpoint,
		MetricsPort:        metricsPort,
		MetricsAPIKey:      os.Getenv("METRICS_API_KEY"),
		WalletAddress:      os.Getenv("WALLET_ADDRESS"),
		AccountID:          os.Getenv("ACCOUNT_ID"),
		CoinMetadataTTL:    coinMetadataTTL,
		Tx: TxConfig{
			MaxRetries: txMaxRetries,
			RetryDelay: txRetryDelay,
			Backoff:    txBackoff,
		},
		Session: SessionConfig{
			InitRetries:    initRetries,
			InitRetryDelay: initRetryDelay,
		},
		HistoryCircuit: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}, nil
}
