package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/logger"
)

const (
	mainnet = "mainnet"
	testnet = "testnet"
	devnet  = "devnet"

	// DefaultNetwork is the default ledger network to connect to
	DefaultNetwork = mainnet

	// DefaultMetricsPort defines the default port for the health and metrics server
	DefaultMetricsPort = "8080"

	// DefaultTxMaxRetries defines the number of additional attempts after a failed submission
	DefaultTxMaxRetries = 2

	// DefaultTxRetryDelay defines the delay between submission attempts
	DefaultTxRetryDelay = 500 * time.Millisecond

	// DefaultTxRetryBackoff defines whether the retry delay doubles after each attempt
	DefaultTxRetryBackoff = false

	// DefaultSessionInitRetries defines how many times client initialisation is retried on connect
	DefaultSessionInitRetries = 1

	// DefaultSessionInitRetryDelay defines the fixed delay between initialisation attempts
	DefaultSessionInitRetryDelay = 2 * time.Second

	// DefaultCoinMetadataTTL defines how long coin metadata is cached
	DefaultCoinMetadataTTL = 30 * time.Minute

	// DefaultHistoryCircuitEnabled defines whether the history API circuit breaker is enabled
	DefaultHistoryCircuitEnabled = true

	// DefaultHistoryCircuitThreshold defines the number of failures before the circuit breaker trips
	DefaultHistoryCircuitThreshold = 5

	// DefaultHistoryCircuitWindow defines the time window for the circuit breaker
	DefaultHistoryCircuitWindow = time.Minute

	// DefaultHistoryCircuitReset defines the reset timeout for the circuit breaker
	DefaultHistoryCircuitReset = 5 * time.Minute

	// DefaultLogLevel defines the default log level
	DefaultLogLevel = logger.InfoLevel

	// DefaultLogColoring defines whether log lines are coloured by default
	DefaultLogColoring = true
)

// Default ledger node endpoints per network. Can be overridden with LEDGER_RPC_URL.
var defaultLedgerRPCURLs = map[string]string{
	mainnet: "https://fullnode.mainnet.sui.io:443",
	testnet: "https://fullnode.testnet.sui.io:443",
	devnet:  "https://fullnode.devnet.sui.io:443",
}

// GetEnvNetwork returns the configured network from environment variables or defaults to mainnet
func GetEnvNetwork() (string, error) {
	network := os.Getenv("NETWORK")
	if network == "" {
		network = DefaultNetwork
	}

	if _, ok := defaultLedgerRPCURLs[network]; !ok {
		return "", fmt.Errorf("invalid NETWORK value: %s, must be 'mainnet', 'testnet' or 'devnet'", network)
	}

	return network, nil
}

// GetEnvLedgerRPCURL returns the ledger node URL for network
func GetEnvLedgerRPCURL(network string) (string, error) {
	rpcURL := os.Getenv("LEDGER_RPC_URL")
	if rpcURL == "" {
		return defaultLedgerRPCURLs[network], nil
	}

	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid LEDGER_RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvWalletBridgeURL returns the wallet bridge URL, which is required
func GetEnvWalletBridgeURL() (string, error) {
	bridgeURL := os.Getenv("WALLET_BRIDGE_URL")
	if bridgeURL == "" {
		return "", fmt.Errorf("WALLET_BRIDGE_URL environment variable is required")
	}

	if _, err := url.ParseRequestURI(bridgeURL); err != nil {
		return "", fmt.Errorf("invalid WALLET_BRIDGE_URL value: %s, must be a valid URL", bridgeURL)
	}
	return bridgeURL, nil
}

// GetEnvHistoryAPIEndpoint returns the history API endpoint; empty disables history writes
func GetEnvHistoryAPIEndpoint() (string, error) {
	endpoint := os.Getenv("HISTORY_API_ENDPOINT")
	if endpoint == "" {
		return "", nil
	}

	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", fmt.Errorf("invalid HISTORY_API_ENDPOINT value: %s, must be a valid URL", endpoint)
	}
	return strings.TrimRight(endpoint, "/"), nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvTxMaxRetries returns the maximum number of submission retries
func GetEnvTxMaxRetries() (int, error) {
	return getEnvNonNegativeInt("TX_MAX_RETRIES", DefaultTxMaxRetries)
}

// GetEnvTxRetryDelay returns the delay between submission attempts
func GetEnvTxRetryDelay() (time.Duration, error) {
	return getEnvDuration("TX_RETRY_DELAY", DefaultTxRetryDelay)
}

// GetEnvTxRetryBackoff returns whether the submission retry delay doubles
func GetEnvTxRetryBackoff() (bool, error) {
	return getEnvBool("TX_RETRY_BACKOFF", DefaultTxRetryBackoff)
}

// GetEnvSessionInitRetries returns how many times client initialisation is retried
func GetEnvSessionInitRetries() (int, error) {
	return getEnvNonNegativeInt("SESSION_INIT_RETRIES", DefaultSessionInitRetries)
}

// GetEnvSessionInitRetryDelay returns the delay between initialisation attempts
func GetEnvSessionInitRetryDelay() (time.Duration, error) {
	return getEnvDuration("SESSION_INIT_RETRY_DELAY", DefaultSessionInitRetryDelay)
}

// GetEnvCoinMetadataTTL returns the coin metadata cache TTL
func GetEnvCoinMetadataTTL() (time.Duration, error) {
	ttl, err := getEnvDuration("COIN_METADATA_TTL", DefaultCoinMetadataTTL)
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("COIN_METADATA_TTL must be greater than 0")
	}
	return ttl, nil
}

// GetEnvHistoryCircuitEnabled returns whether the history circuit breaker is enabled
func GetEnvHistoryCircuitEnabled() (bool, error) {
	return getEnvBool("HISTORY_CIRCUIT_ENABLED", DefaultHistoryCircuitEnabled)
}

// GetEnvHistoryCircuitThreshold returns the history circuit breaker threshold
func GetEnvHistoryCircuitThreshold() (int, error) {
	threshold := os.Getenv("HISTORY_CIRCUIT_THRESHOLD")
	if threshold == "" {
		return DefaultHistoryCircuitThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid HISTORY_CIRCUIT_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("HISTORY_CIRCUIT_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvHistoryCircuitWindow returns the history circuit breaker failure window
func GetEnvHistoryCircuitWindow() (time.Duration, error) {
	return getEnvDuration("HISTORY_CIRCUIT_WINDOW", DefaultHistoryCircuitWindow)
}

// GetEnvHistoryCircuitReset returns the history circuit breaker reset timeout
func GetEnvHistoryCircuitReset() (time.Duration, error) {
	return getEnvDuration("HISTORY_CIRCUIT_RESET", DefaultHistoryCircuitReset)
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return DefaultLogLevel, nil
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
	}
	return parsed, nil
}

// GetEnvLogColoring returns whether log output is coloured
func GetEnvLogColoring() (bool, error) {
	return getEnvBool("LOG_COLORING", DefaultLogColoring)
}

func getEnvBool(key string, def bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", key, value)
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return parsed, nil
}

func getEnvNonNegativeInt(key string, def int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", key, value)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must be greater than or equal to 0", key)
	}
	return parsed, nil
}
