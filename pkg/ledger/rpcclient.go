package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/models"
)

const (
	// coinPageSize is the page size used when enumerating coins
	coinPageSize = 50

	// maxCoinPages bounds coin enumeration for accounts with very fragmented balances
	maxCoinPages = 100

	// defaultCallTimeout bounds read calls to the ledger node
	defaultCallTimeout = 10 * time.Second
)

// RPCClient implements Client over the ledger node JSON-RPC interface
type RPCClient struct {
	rpc         *rpc.Client
	network     string
	address     string
	callTimeout time.Duration
	logger      logger.Logger

	mu        sync.RWMutex
	accountID string
}

var _ Client = (*RPCClient)(nil)

// Dial connects to the ledger node and returns a client scoped to address and accountID.
// When accountID is empty the first account of the address is selected.
func Dial(ctx context.Context, network, rpcURL, address, accountID string, log logger.Logger) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node: %w", err)
	}

	client, err := NewRPCClient(ctx, c, network, address, accountID, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	return client, nil
}

// NewRPCClient wraps an existing JSON-RPC connection
func NewRPCClient(ctx context.Context, c *rpc.Client, network, address, accountID string, log logger.Logger) (*RPCClient, error) {
	if !models.IsValidAddress(address) {
		return nil, fmt.Errorf("invalid address: %s", address)
	}

	client := &RPCClient{
		rpc:         c,
		network:     network,
		address:     models.NormalizeAddress(address),
		callTimeout: defaultCallTimeout,
		logger:      log,
	}

	if accountID == "" {
		accounts, err := client.Accounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}
		if len(accounts) > 0 {
			accountID = accounts[0].ID
		}
		client.accountID = accountID
		log.DebugWithScope(logger.Ledger, "Initialized client for %s with default account %q (%d accounts)",
			client.address, accountID, len(accounts))
		return client, nil
	}

	if err := client.SwitchAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *RPCClient) Network() string {
	return c.network
}

func (c *RPCClient) Address() string {
	return c.address
}

func (c *RPCClient) AccountID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountID
}

// SwitchAccount makes accountID the active account after checking it exists
func (c *RPCClient) SwitchAccount(ctx context.Context, accountID string) error {
	var account *rawAccount
	if err := c.call(ctx, &account, "payments_getAccount", accountID); err != nil {
		return fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	if account == nil {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}

	c.mu.Lock()
	previous := c.accountID
	c.accountID = accountID
	c.mu.Unlock()

	c.logger.DebugWithScope(logger.Ledger, "Switched active account %q -> %q", previous, accountID)
	return nil
}

// Close closes the underlying connection
func (c *RPCClient) Close() {
	c.rpc.Close()
}

func (c *RPCClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.rpc.CallContext(callCtx, result, method, args...)
}

// Accounts lists the payment accounts the address owns or backs up
func (c *RPCClient) Accounts(ctx context.Context) ([]models.Account, error) {
	var raw []rawAccount
	if err := c.call(ctx, &raw, "payments_getAccounts", c.address); err != nil {
		return nil, err
	}
	accounts := make([]models.Account, 0, len(raw))
	for _, r := range raw {
		accounts = append(accounts, r.toModel())
	}
	return accounts, nil
}

// Account returns the active account
func (c *RPCClient) Account(ctx context.Context) (*models.Account, error) {
	accountID := c.AccountID()
	if accountID == "" {
		return nil, fmt.Errorf("no active account: %w", ErrNotFound)
	}

	var raw *rawAccount
	if err := c.call(ctx, &raw, "payments_getAccount", accountID); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	account := raw.toModel()
	return &account, nil
}

// Intents lists every intent of the active account
func (c *RPCClient) Intents(ctx context.Context) ([]models.Intent, error) {
	var raw []rawIntent
	if err := c.call(ctx, &raw, "payments_getIntents", c.AccountID()); err != nil {
		return nil, err
	}

	intents := make([]models.Intent, 0, len(raw))
	for _, r := range raw {
		intent, err := r.toModel()
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

// Intent fetches one intent by key
func (c *RPCClient) Intent(ctx context.Context, key string) (*models.Intent, error) {
	var raw *rawIntent
	if err := c.call(ctx, &raw, "payments_getIntent", c.AccountID(), key); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("intent %s: %w", key, ErrNotFound)
	}
	intent, err := raw.toModel()
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// Coins enumerates every coin object of the given type owned by the active account
func (c *RPCClient) Coins(ctx context.Context, coinType string) ([]models.CoinObject, error) {
	owner := c.AccountID()
	if owner == "" {
		owner = c.address
	}

	var (
		coins  []models.CoinObject
		cursor *string
	)
	for page := 0; page < maxCoinPages; page++ {
		var resp coinPage
		if err := c.call(ctx, &resp, "suix_getCoins", owner, coinType, cursor, coinPageSize); err != nil {
			return nil, fmt.Errorf("failed to fetch coins: %w", err)
		}

		for _, coin := range resp.Data {
			amount, err := strconv.ParseUint(coin.Balance, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid balance %q for coin %s: %w", coin.Balance, coin.CoinObjectID, err)
			}
			coins = append(coins, models.CoinObject{ObjectID: coin.CoinObjectID, Amount: amount})
		}

		if !resp.HasNextPage || resp.NextCursor == nil {
			return coins, nil
		}
		cursor = resp.NextCursor
	}

	c.logger.ErrorWithScope(logger.Ledger, "Coin enumeration for %s stopped after %d pages", owner, maxCoinPages)
	return nil, fmt.Errorf("%s coins of %s after %d pages: %w", coinType, owner, maxCoinPages, ErrCoinEnumerationTruncated)
}

// LockedObjects lists coin objects reserved by pending withdrawals of the active account
func (c *RPCClient) LockedObjects(ctx context.Context) ([]models.ObjectLock, error) {
	var raw []rawObjectLock
	if err := c.call(ctx, &raw, "payments_getLockedObjects", c.AccountID()); err != nil {
		return nil, err
	}
	locks := make([]models.ObjectLock, 0, len(raw))
	for _, r := range raw {
		locks = append(locks, models.ObjectLock{ObjectID: r.ObjectID, IntentKey: r.IntentKey})
	}
	return locks, nil
}

// CoinMetadata fetches the metadata of a coin type
func (c *RPCClient) CoinMetadata(ctx context.Context, coinType string) (*CoinMetadata, error) {
	var meta *CoinMetadata
	if err := c.call(ctx, &meta, "suix_getCoinMetadata", coinType); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("coin metadata %s: %w", coinType, ErrNotFound)
	}
	return meta, nil
}

// DependencyStatus reports whether the account's verified dependencies are current
func (c *RPCClient) DependencyStatus(ctx context.Context) (*DependencyStatus, error) {
	var deps DependencyStatus
	if err := c.call(ctx, &deps, "payments_dependencyStatus", c.AccountID()); err != nil {
		return nil, err
	}
	return &deps, nil
}

func (c *RPCClient) build(ctx context.Context, operation, method string, args ...interface{}) (*Transaction, error) {
	var resp builtTransaction
	if err := c.call(ctx, &resp, method, args...); err != nil {
		return nil, fmt.Errorf("failed to build %s transaction: %w", operation, err)
	}
	if resp.TxBytes == "" {
		return nil, fmt.Errorf("failed to build %s transaction: empty transaction bytes", operation)
	}
	return &Transaction{Operation: operation, Sender: c.address, Bytes: resp.TxBytes}, nil
}

func (c *RPCClient) CreateAccount(ctx context.Context, name string) (*Transaction, error) {
	return c.build(ctx, "create_account", "payments_createAccount", c.address, name)
}

func (c *RPCClient) IssuePayment(ctx context.Context, req IssuePaymentRequest) (*Transaction, error) {
	params := issuePaymentParams{
		Amount:      amountString(req.Amount),
		CoinType:    req.CoinType,
		Description: req.Description,
	}
	// omitted for requests that never expire
	if ms := req.Expiration.Milliseconds(); ms > 0 {
		params.ExpirationMs = strconv.FormatInt(ms, 10)
	}
	return c.build(ctx, "issue_payment", "payments_issuePayment", c.AccountID(), c.address, params)
}

func (c *RPCClient) MakePayment(ctx context.Context, req MakePaymentRequest) (*Transaction, error) {
	return c.build(ctx, "make_payment", "payments_makePayment", c.AccountID(), c.address, makePaymentParams{
		IntentKey: req.IntentKey,
		Issuer:    req.Issuer,
		Amount:    amountString(req.Amount),
		CoinType:  req.CoinType,
		Coins:     req.CoinObjectIDs,
	})
}

func (c *RPCClient) Transfer(ctx context.Context, req TransferRequest) (*Transaction, error) {
	return c.build(ctx, "transfer", "payments_transfer", c.AccountID(), c.address, transferParams{
		Recipient: req.Recipient,
		Amount:    amountString(req.Amount),
		CoinType:  req.CoinType,
		Coins:     req.CoinObjectIDs,
	})
}

func (c *RPCClient) InitiateWithdraw(ctx context.Context, req InitiateWithdrawRequest) (*Transaction, error) {
	return c.build(ctx, "initiate_withdraw", "payments_initiateWithdraw", c.AccountID(), c.address, withdrawParams{
		Recipient:   req.Recipient,
		Amount:      amountString(req.Amount),
		CoinType:    req.CoinType,
		Coins:       req.CoinObjectIDs,
		ExpiresAtMs: strconv.FormatInt(req.ExpiresAt.UnixMilli(), 10),
	})
}

func (c *RPCClient) ConfirmWithdraw(ctx context.Context, intentKey string) (*Transaction, error) {
	return c.build(ctx, "confirm_withdraw", "payments_confirmWithdraw", c.AccountID(), c.address, intentKey)
}

func (c *RPCClient) SetRecoveryAddress(ctx context.Context, backup string) (*Transaction, error) {
	return c.build(ctx, "set_recovery_address", "payments_setRecoveryAddress", c.AccountID(), c.address, backup)
}

func (c *RPCClient) ModifyName(ctx context.Context, name string) (*Transaction, error) {
	return c.build(ctx, "modify_name", "payments_modifyName", c.AccountID(), c.address, name)
}

func (c *RPCClient) UpdateVerifiedDeps(ctx context.Context) (*Transaction, error) {
	return c.build(ctx, "update_verified_deps", "payments_updateVerifiedDeps", c.AccountID(), c.address)
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
