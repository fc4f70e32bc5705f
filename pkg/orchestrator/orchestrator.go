package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/metrics"
)

// Outcome is the settled state of a submission
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// BuildFunc constructs a fresh transaction. It is called once per attempt.
type BuildFunc func(ctx context.Context) (*ledger.Transaction, error)

// Signer signs and executes a transaction through the user's wallet
type Signer interface {
	SignAndExecute(ctx context.Context, tx *ledger.Transaction) (*ledger.ExecutionResult, error)
}

// Config holds the retry policy
type Config struct {
	// MaxRetries is the number of attempts after the first one
	MaxRetries int
	RetryDelay time.Duration
	// Backoff doubles the delay after every retry
	Backoff bool
}

// DefaultConfig returns the standard retry policy
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Result describes a settled submission
type Result struct {
	ID        uuid.UUID
	Operation string
	Outcome   Outcome
	Attempts  int
	Execution *ledger.ExecutionResult
	Err       error
}

// Digest returns the digest of the executed transaction, empty unless successful
func (r *Result) Digest() string {
	if r == nil || r.Execution == nil {
		return ""
	}
	return r.Execution.Digest
}

// Orchestrator drives transactions through build, sign and execute with retries
type Orchestrator struct {
	signer Signer
	cfg    Config
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator backed by signer
func New(signer Signer, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Orchestrator{
		signer: signer,
		cfg:    cfg,
		logger: log,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryDelay returns the delay before retry number retry (1-based)
func (o *Orchestrator) retryDelay(retry int) time.Duration {
	delay := o.cfg.RetryDelay
	if o.cfg.Backoff {
		for i := 1; i < retry; i++ {
			delay *= 2
		}
	}
	return delay
}

// Submit builds, signs and executes a transaction. Cancellations settle
// immediately; other failures are retried with a freshly built transaction.
// The returned error is nil only for OutcomeSuccess.
func (o *Orchestrator) Submit(ctx context.Context, operation string, build BuildFunc) (*Result, error) {
	result := &Result{ID: uuid.New(), Operation: operation}
	start := time.Now()
	defer func() {
		metrics.TransactionOutcomes.WithLabelValues(operation, string(result.Outcome)).Inc()
		metrics.TransactionDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.TransactionRetries.WithLabelValues(operation).Inc()
			delay := o.retryDelay(attempt)
			o.logger.InfoWithScope(logger.Tx, "Retrying %s (%s) in %v, attempt %d/%d: %v",
				operation, result.ID, delay, attempt+1, o.cfg.MaxRetries+1, lastErr)
			if err := o.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		result.Attempts++
		metrics.TransactionAttempts.WithLabelValues(operation).Inc()

		execution, err := o.attempt(ctx, build)
		if err == nil {
			result.Outcome = OutcomeSuccess
			result.Execution = execution
			o.logger.NoticeWithScope(logger.Tx, "%s (%s) settled: digest %s after %d attempt(s)",
				operation, result.ID, execution.Digest, result.Attempts)
			return result, nil
		}
		lastErr = err

		if cancelled, signal := ClassifyError(err); cancelled {
			o.logger.InfoWithScope(logger.Tx, "%s (%s) cancelled by user (%s)", operation, result.ID, signal)
			result.Outcome = OutcomeCancelled
			result.Err = fmt.Errorf("%s: %w: %w", operation, ErrUserCancelled, err)
			return result, result.Err
		}

		o.logger.ErrorWithScope(logger.Tx, "%s (%s) attempt %d failed: %v", operation, result.ID, result.Attempts, err)
	}

	if cancelled, _ := ClassifyError(lastErr); cancelled {
		result.Outcome = OutcomeCancelled
		result.Err = fmt.Errorf("%s: %w: %w", operation, ErrUserCancelled, lastErr)
		return result, result.Err
	}

	result.Outcome = OutcomeFailed
	result.Err = &SubmissionError{Operation: operation, Attempts: result.Attempts, Err: lastErr}
	return result, result.Err
}

// attempt runs one build, sign and execute cycle
func (o *Orchestrator) attempt(ctx context.Context, build BuildFunc) (*ledger.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := build(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &buildError{err: err}
	}

	execution, err := o.signer.SignAndExecute(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !execution.Succeeded() {
		if execution == nil {
			return nil, &ledger.ExecutionError{Status: "missing effects"}
		}
		return nil, &ledger.ExecutionError{
			Digest: execution.Digest,
			Status: execution.Effects.Status.Status,
			Reason: execution.Effects.Status.Error,
		}
	}
	return execution, nil
}
