package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	TransactionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paydesk_transaction_attempts_total",
		Help: "The total number of build/sign/execute attempts by operation",
	}, []string{"operation"})

	TransactionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paydesk_transaction_outcomes_total",
		Help: "The total number of finished submissions by operation and outcome",
	}, []string{"operation", "outcome"})

	TransactionRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paydesk_transaction_retries_total",
		Help: "The total number of retried submission attempts by operation",
	}, []string{"operation"})

	TransactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paydesk_transaction_duration_seconds",
		Help:    "Time from first build to settled outcome",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // Start at 250ms with 10 buckets doubling in size
	}, []string{"operation"})

	TipFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paydesk_tip_failures_total",
		Help: "Number of tip transfers that failed after a successful primary payment",
	})

	// Session metrics
	SessionInits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paydesk_session_inits_total",
		Help: "Number of ledger client initialisations by result",
	}, []string{"result"})

	SessionSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paydesk_session_account_switches_total",
		Help: "Number of in-place active account switches",
	})

	SessionResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paydesk_session_resets_total",
		Help: "Number of cached session discards",
	})

	RefreshCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paydesk_refresh_counter",
		Help: "Current value of the view refresh counter",
	})

	// History API metrics
	HistoryWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paydesk_history_writes_total",
		Help: "Number of payment history writes by result",
	}, []string{"result"})

	CoinMetadataMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paydesk_coin_metadata_cache_misses_total",
		Help: "Number of coin metadata lookups not served from cache",
	})

	ActionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paydesk_actions_in_flight",
		Help: "The number of dashboard actions currently executing",
	})
)
