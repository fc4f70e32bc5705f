package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/models"
)

// ErrNotFound is returned when the ledger has no record for the requested key
var ErrNotFound = errors.New("not found")

// ErrCoinEnumerationTruncated is returned when an account holds more coin
// objects than a single enumeration is allowed to page through
var ErrCoinEnumerationTruncated = errors.New("coin enumeration truncated")

// Transaction is an unsigned transaction produced by one of the builder calls
type Transaction struct {
	Operation string
	Sender    string
	// Bytes is the base64 encoded transaction as returned by the builder
	Bytes string
}

// EffectsStatus reports whether an executed transaction succeeded on chain
type EffectsStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Effects holds the execution effects relevant to the dashboard
type Effects struct {
	Status EffectsStatus `json:"status"`
}

// Event is an event emitted by an executed transaction
type Event struct {
	Type       string                 `json:"type"`
	ParsedJSON map[string]interface{} `json:"parsedJson,omitempty"`
}

// ExecutionResult is returned by the wallet after signing and executing a transaction
type ExecutionResult struct {
	Digest  string  `json:"digest"`
	Effects Effects `json:"effects"`
	Events  []Event `json:"events,omitempty"`
}

// Succeeded reports whether the effects carry a success status
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Effects.Status.Status == "success"
}

// ExecutionError reports a transaction that was signed and executed but failed on chain
type ExecutionError struct {
	Digest string
	Status string
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s failed with status %q", e.Digest, e.Status)
	}
	return fmt.Sprintf("transaction %s failed with status %q: %s", e.Digest, e.Status, e.Reason)
}

// CoinMetadata describes a coin type
type CoinMetadata struct {
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// Dependency is a versioned package the payment account depends on
type Dependency struct {
	Name    string `json:"name"`
	Addr    string `json:"addr"`
	Version uint64 `json:"version"`
}

// DependencyStatus compares the account's verified dependencies with the latest published ones
type DependencyStatus struct {
	UpToDate bool         `json:"upToDate"`
	Current  []Dependency `json:"current"`
	Latest   []Dependency `json:"latest"`
}

// IssuePaymentRequest creates a payment request payable by anyone
type IssuePaymentRequest struct {
	Amount      *big.Int
	CoinType    string
	Description string
	// Expiration is relative to the creation time of the intent.
	Expiration time.Duration
}

// MakePaymentRequest pays an existing payment intent
type MakePaymentRequest struct {
	IntentKey     string
	Issuer        string
	Amount        *big.Int
	CoinType      string
	CoinObjectIDs []string
}

// TransferRequest moves coins from the account to a recipient
type TransferRequest struct {
	Recipient     string
	Amount        *big.Int
	CoinType      string
	CoinObjectIDs []string
}

// InitiateWithdrawRequest reserves coins for a withdrawal that the backup must confirm
type InitiateWithdrawRequest struct {
	Recipient     string
	Amount        *big.Int
	CoinType      string
	CoinObjectIDs []string
	ExpiresAt     time.Time
}

// Reader exposes the read-only ledger calls
type Reader interface {
	Accounts(ctx context.Context) ([]models.Account, error)
	Account(ctx context.Context) (*models.Account, error)
	Intents(ctx context.Context) ([]models.Intent, error)
	Intent(ctx context.Context, key string) (*models.Intent, error)
	Coins(ctx context.Context, coinType string) ([]models.CoinObject, error)
	LockedObjects(ctx context.Context) ([]models.ObjectLock, error)
	CoinMetadata(ctx context.Context, coinType string) (*CoinMetadata, error)
	DependencyStatus(ctx context.Context) (*DependencyStatus, error)
}

// Builder exposes the transaction-building calls
type Builder interface {
	CreateAccount(ctx context.Context, name string) (*Transaction, error)
	IssuePayment(ctx context.Context, req IssuePaymentRequest) (*Transaction, error)
	MakePayment(ctx context.Context, req MakePaymentRequest) (*Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*Transaction, error)
	InitiateWithdraw(ctx context.Context, req InitiateWithdrawRequest) (*Transaction, error)
	ConfirmWithdraw(ctx context.Context, intentKey string) (*Transaction, error)
	SetRecoveryAddress(ctx context.Context, backup string) (*Transaction, error)
	ModifyName(ctx context.Context, name string) (*Transaction, error)
	UpdateVerifiedDeps(ctx context.Context) (*Transaction, error)
}

// Client is a ledger session scoped to one user address and one active account
type Client interface {
	Reader
	Builder

	Network() string
	Address() string
	AccountID() string
	// SwitchAccount changes the active account in place.
	SwitchAccount(ctx context.Context, accountID string) error
	Close()
}
