// Package wallet signs and executes transactions through the user's wallet bridge.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
)

// ErrEmptyTransaction is returned when asked to sign a transaction without bytes
var ErrEmptyTransaction = errors.New("empty transaction")

// Signer submits transactions to the wallet bridge for signing and execution
type Signer struct {
	rpc    *rpc.Client
	logger logger.Logger
}

type executeOptions struct {
	ShowEffects bool `json:"showEffects"`
	ShowEvents  bool `json:"showEvents"`
}

// Dial connects to the wallet bridge at url
func Dial(ctx context.Context, url string, log logger.Logger) (*Signer, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet bridge: %w", err)
	}
	return NewSigner(c, log), nil
}

// NewSigner wraps an existing JSON-RPC connection to the wallet bridge
func NewSigner(c *rpc.Client, log logger.Logger) *Signer {
	return &Signer{rpc: c, logger: log}
}

// SignAndExecute asks the wallet to sign tx and execute it on the ledger.
// Errors raised by the wallet, including user rejections, are returned as is
// so callers can inspect their codes.
func (s *Signer) SignAndExecute(ctx context.Context, tx *ledger.Transaction) (*ledger.ExecutionResult, error) {
	if tx == nil || tx.Bytes == "" {
		return nil, ErrEmptyTransaction
	}

	s.logger.DebugWithScope(logger.Wallet, "Requesting signature for %s from %s", tx.Operation, tx.Sender)

	var result ledger.ExecutionResult
	err := s.rpc.CallContext(ctx, &result, "wallet_signAndExecuteTransaction",
		tx.Bytes, tx.Sender, executeOptions{ShowEffects: true, ShowEvents: true})
	if err != nil {
		return nil, err
	}

	if !result.Succeeded() {
		return &result, &ledger.ExecutionError{Digest: result.Digest, Status: result.Effects.Status.Status, Reason: result.Effects.Status.Error}
	}

	s.logger.InfoWithScope(logger.Wallet, "Executed %s: digest %s", tx.Operation, result.Digest)
	return &result, nil
}

// Close closes the connection to the bridge
func (s *Signer) Close() {
	s.rpc.Close()
}
