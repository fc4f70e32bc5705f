package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walletError mimics a JSON-RPC error returned by the wallet bridge
type walletError struct {
	code int
	msg  string
}

func (e *walletError) Error() string  { return e.msg }
func (e *walletError) ErrorCode() int { return e.code }

// scriptedSigner returns the scripted errors in order, then succeeds
type scriptedSigner struct {
	mu      sync.Mutex
	errs    []error
	signed  []string
	results []*ledger.ExecutionResult
}

func (s *scriptedSigner) SignAndExecute(_ context.Context, tx *ledger.Transaction) (*ledger.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signed = append(s.signed, tx.Bytes)

	if len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		return r, nil
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return success("digest-" + tx.Bytes), nil
}

func (s *scriptedSigner) failForever(err error) {
	s.errs = make([]error, 100)
	for i := range s.errs {
		s.errs[i] = err
	}
}

func success(digest string) *ledger.ExecutionResult {
	return &ledger.ExecutionResult{
		Digest:  digest,
		Effects: ledger.Effects{Status: ledger.EffectsStatus{Status: "success"}},
	}
}

// countingBuilder builds a distinct transaction per call
type countingBuilder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *countingBuilder) build(_ context.Context) (*ledger.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &ledger.Transaction{Operation: "make_payment", Bytes: fmt.Sprintf("tx-%d", b.calls)}, nil
}

func (b *countingBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func newTestOrchestrator(signer Signer) (*Orchestrator, *[]time.Duration) {
	o := New(signer, Config{MaxRetries: 2, RetryDelay: 500 * time.Millisecond}, &logger.EmptyLogger{})
	var delays []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return o, &delays
}

func TestSubmitSuccess(t *testing.T) {
	signer := &scriptedSigner{}
	o, delays := newTestOrchestrator(signer)
	b := &countingBuilder{}

	result, err := o.Submit(context.Background(), "make_payment", b.build)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "digest-tx-1", result.Digest())
	assert.NotEmpty(t, result.ID.String())
	assert.Empty(t, *delays)
}

func TestSubmitCancellationIsNeverRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "Wallet code 4001", err: &walletError{code: 4001, msg: "request refused"}},
		{name: "Wallet code -32603", err: &walletError{code: -32603, msg: "internal"}},
		{name: "Message user", err: errors.New("User closed the popup")},
		{name: "Message reject", err: errors.New("transaction REJECTED")},
		{name: "Message cancel", err: errors.New("signing cancelled")},
		{name: "Message denied", err: errors.New("permission denied")},
		{name: "Message abort", err: errors.New("request aborted")},
		{name: "Nested cause", err: fmt.Errorf("wallet bridge: %w", &walletError{code: 4001, msg: "x"})},
		{name: "Joined cause", err: errors.Join(errors.New("bridge failed"), errors.New("user rejected"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := &scriptedSigner{}
			signer.failForever(tt.err)
			o, delays := newTestOrchestrator(signer)
			b := &countingBuilder{}

			result, err := o.Submit(context.Background(), "make_payment", b.build)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUserCancelled))
			assert.Equal(t, OutcomeCancelled, result.Outcome)
			assert.Equal(t, 1, result.Attempts)
			assert.Equal(t, 1, b.count())
			assert.Len(t, signer.signed, 1)
			assert.Empty(t, *delays)
		})
	}
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	t.Run("Exhausts retries after three attempts", func(t *testing.T) {
		signer := &scriptedSigner{}
		signer.failForever(errors.New("connection reset by peer"))
		o, delays := newTestOrchestrator(signer)
		b := &countingBuilder{}

		result, err := o.Submit(context.Background(), "make_payment", b.build)
		var subErr *SubmissionError
		require.True(t, errors.As(err, &subErr))
		assert.Equal(t, 3, subErr.Attempts)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, OutcomeFailed, result.Outcome)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, 3, b.count())
		assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, *delays)
	})

	t.Run("Each attempt rebuilds the transaction", func(t *testing.T) {
		signer := &scriptedSigner{errs: []error{errors.New("timeout"), errors.New("timeout")}}
		o, _ := newTestOrchestrator(signer)
		b := &countingBuilder{}

		result, err := o.Submit(context.Background(), "make_payment", b.build)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, []string{"tx-1", "tx-2", "tx-3"}, signer.signed)
	})

	t.Run("Build failures are retried", func(t *testing.T) {
		signer := &scriptedSigner{}
		o, _ := newTestOrchestrator(signer)
		b := &countingBuilder{err: errors.New("coin object version mismatch")}

		_, err := o.Submit(context.Background(), "make_payment", b.build)
		var subErr *SubmissionError
		require.True(t, errors.As(err, &subErr))
		assert.Equal(t, 3, b.count())
		assert.Empty(t, signer.signed)
	})

	t.Run("Ledger internal error during build is retried", func(t *testing.T) {
		signer := &scriptedSigner{}
		o, _ := newTestOrchestrator(signer)
		b := &countingBuilder{err: &walletError{code: -32603, msg: "internal error: user coin index unavailable"}}

		result, err := o.Submit(context.Background(), "make_payment", b.build)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUserCancelled))
		assert.Equal(t, OutcomeFailed, result.Outcome)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, 3, b.count())
		assert.Empty(t, signer.signed)
	})

	t.Run("On-chain failure is retried, never a cancellation", func(t *testing.T) {
		failed := &ledger.ExecutionResult{
			Digest:  "d1",
			Effects: ledger.Effects{Status: ledger.EffectsStatus{Status: "failure", Error: "MoveAbort in 0x2::coin"}},
		}
		signer := &scriptedSigner{results: []*ledger.ExecutionResult{failed}}
		o, _ := newTestOrchestrator(signer)
		b := &countingBuilder{}

		result, err := o.Submit(context.Background(), "make_payment", b.build)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Attempts)
	})

	t.Run("Backoff doubles the delay", func(t *testing.T) {
		signer := &scriptedSigner{}
		signer.failForever(errors.New("timeout"))
		o := New(signer, Config{MaxRetries: 3, RetryDelay: 100 * time.Millisecond, Backoff: true}, &logger.EmptyLogger{})
		var delays []time.Duration
		o.sleep = func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}

		_, err := o.Submit(context.Background(), "transfer", (&countingBuilder{}).build)
		require.Error(t, err)
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, delays)
	})

	t.Run("Cancellation after a transient failure stops retrying", func(t *testing.T) {
		signer := &scriptedSigner{errs: []error{errors.New("timeout"), &walletError{code: 4001, msg: "no"}}}
		o, _ := newTestOrchestrator(signer)
		b := &countingBuilder{}

		result, err := o.Submit(context.Background(), "make_payment", b.build)
		assert.True(t, errors.Is(err, ErrUserCancelled))
		assert.Equal(t, 2, result.Attempts)
	})
}

func TestSubmitContextDeadlineDuringDelay(t *testing.T) {
	signer := &scriptedSigner{}
	signer.failForever(errors.New("timeout"))
	o := New(signer, Config{MaxRetries: 2, RetryDelay: time.Hour}, &logger.EmptyLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	b := &countingBuilder{}
	result, err := o.Submit(ctx, "make_payment", b.build)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 1, b.count())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		cancelled bool
		signal    string
	}{
		{name: "Nil", err: nil},
		{name: "Transient", err: errors.New("503 service unavailable")},
		{name: "Other wallet code", err: &walletError{code: -32000, msg: "insufficient gas"}},
		{name: "Rejection code", err: &walletError{code: 4001, msg: "x"}, cancelled: true, signal: "wallet_rejection_code"},
		{name: "Case insensitive", err: errors.New("Request Denied"), cancelled: true, signal: "rejection_message"},
		{name: "On-chain abort", err: &ledger.ExecutionError{Digest: "d", Status: "failure", Reason: "MoveAbort"}},
		{name: "Build failure with wallet code", err: &buildError{err: &walletError{code: -32603, msg: "internal error"}}},
		{name: "Build failure mentioning user", err: fmt.Errorf("submit: %w", &buildError{err: errors.New("unknown user account")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cancelled, signal := ClassifyError(tt.err)
			assert.Equal(t, tt.cancelled, cancelled)
			assert.Equal(t, tt.signal, signal)
		})
	}
}

func TestPayWithTip(t *testing.T) {
	t.Run("Tip submitted after primary", func(t *testing.T) {
		signer := &scriptedSigner{}
		o, _ := newTestOrchestrator(signer)
		primary, tip := &countingBuilder{}, &countingBuilder{}

		res, err := o.PayWithTip(context.Background(),
			Step{Operation: "make_payment", Build: primary.build},
			Step{Operation: "tip", Build: tip.build})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, res.Primary.Outcome)
		require.NotNil(t, res.Tip)
		assert.Equal(t, OutcomeSuccess, res.Tip.Outcome)
		assert.Nil(t, res.Warning)
		assert.Equal(t, 1, tip.count())
	})

	t.Run("Primary failure never builds the tip", func(t *testing.T) {
		signer := &scriptedSigner{}
		signer.failForever(errors.New("timeout"))
		o, _ := newTestOrchestrator(signer)
		primary, tip := &countingBuilder{}, &countingBuilder{}

		res, err := o.PayWithTip(context.Background(),
			Step{Operation: "make_payment", Build: primary.build},
			Step{Operation: "tip", Build: tip.build})
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, res.Primary.Outcome)
		assert.Nil(t, res.Tip)
		assert.Equal(t, 0, tip.count())
	})

	t.Run("Primary cancellation never builds the tip", func(t *testing.T) {
		signer := &scriptedSigner{errs: []error{errors.New("user rejected")}}
		o, _ := newTestOrchestrator(signer)
		tip := &countingBuilder{}

		_, err := o.PayWithTip(context.Background(),
			Step{Operation: "make_payment", Build: (&countingBuilder{}).build},
			Step{Operation: "tip", Build: tip.build})
		assert.True(t, errors.Is(err, ErrUserCancelled))
		assert.Equal(t, 0, tip.count())
	})

	t.Run("Tip failure is a warning", func(t *testing.T) {
		signer := &scriptedSigner{}
		o, _ := newTestOrchestrator(signer)
		tip := &countingBuilder{err: errors.New("no coins left")}

		res, err := o.PayWithTip(context.Background(),
			Step{Operation: "make_payment", Build: (&countingBuilder{}).build},
			Step{Operation: "tip", Build: tip.build})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, res.Primary.Outcome)
		require.NotNil(t, res.Warning)
		assert.Equal(t, "digest-tx-1", res.Warning.PrimaryDigest)
		assert.Contains(t, res.Warning.Error(), "tip failed")
		assert.Equal(t, OutcomeFailed, res.Tip.Outcome)
	})

	t.Run("No tip", func(t *testing.T) {
		o, _ := newTestOrchestrator(&scriptedSigner{})
		res, err := o.PayWithTip(context.Background(),
			Step{Operation: "make_payment", Build: (&countingBuilder{}).build}, Step{})
		require.NoError(t, err)
		assert.Nil(t, res.Tip)
		assert.Nil(t, res.Warning)
	})
}
