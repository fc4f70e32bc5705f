package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/speedrun-hq/paydesk/pkg/circuitbreaker"
	"github.com/speedrun-hq/paydesk/pkg/coins"
	"github.com/speedrun-hq/paydesk/pkg/config"
	"github.com/speedrun-hq/paydesk/pkg/dashboard"
	"github.com/speedrun-hq/paydesk/pkg/health"
	"github.com/speedrun-hq/paydesk/pkg/history"
	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/orchestrator"
	"github.com/speedrun-hq/paydesk/pkg/session"
	"github.com/speedrun-hq/paydesk/pkg/wallet"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		appLogger.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	signer, err := wallet.Dial(ctx, cfg.WalletBridgeURL, appLogger)
	if err != nil {
		log.Fatalf("Failed to create wallet signer: %v", err)
	}
	defer signer.Close()

	orch := orchestrator.New(signer, orchestrator.Config{
		MaxRetries: cfg.Tx.MaxRetries,
		RetryDelay: cfg.Tx.RetryDelay,
		Backoff:    cfg.Tx.Backoff,
	}, appLogger)

	sess := session.New(func(ctx context.Context, address, accountID string) (ledger.Client, error) {
		return ledger.Dial(ctx, cfg.Network, cfg.LedgerRPCURL, address, accountID, appLogger)
	}, appLogger)
	defer sess.Close()

	breakers := make(map[string]*circuitbreaker.CircuitBreaker)
	var historyStore dashboard.HistoryStore
	if cfg.HistoryAPIEndpoint != "" {
		breaker := circuitbreaker.NewCircuitBreaker(
			"history",
			cfg.HistoryCircuit.Enabled,
			cfg.HistoryCircuit.Threshold,
			cfg.HistoryCircuit.WindowDuration,
			cfg.HistoryCircuit.ResetTimeout,
			appLogger,
		)
		breakers[breaker.Name()] = breaker
		historyStore = history.New(cfg.HistoryAPIEndpoint, breaker, appLogger)
	} else {
		appLogger.NoticeWithScope(logger.History, "HISTORY_API_ENDPOINT not set, payment history disabled")
	}

	svc := dashboard.NewService(
		sess,
		orch,
		coins.NewMetadataCache(cfg.CoinMetadataTTL, appLogger),
		historyStore,
		dashboard.Options{
			Network:        cfg.Network,
			InitRetries:    cfg.Session.InitRetries,
			InitRetryDelay: cfg.Session.InitRetryDelay,
		},
		appLogger,
	)

	if cfg.WalletAddress != "" {
		if _, err := svc.Connect(ctx, cfg.WalletAddress, cfg.AccountID); err != nil {
			appLogger.ErrorWithScope(logger.Dashboard, "Failed to connect %s: %v", cfg.WalletAddress, err)
		}
	}

	events, stop := svc.RefreshEvents()
	defer stop()
	go func() {
		for counter := range events {
			appLogger.DebugWithScope(logger.Dashboard, "Refresh requested (%d)", counter)
		}
	}()

	server := health.NewServer(cfg.MetricsPort, cfg.MetricsAPIKey, svc, breakers, appLogger)
	appLogger.Info("Starting the paydesk service on network %s...", cfg.Network)
	if err := server.Start(ctx); err != nil {
		appLogger.Error("%v", err)
		os.Exit(1)
	}
	appLogger.Info("Service stopped")
}
