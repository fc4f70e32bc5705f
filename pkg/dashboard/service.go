// Package dashboard is the action facade behind the payments dashboard. Every
// user action resolves the live ledger client through the session, checks its
// preconditions locally and only then hands the transaction to the orchestrator.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/balance"
	"github.com/speedrun-hq/paydesk/pkg/coins"
	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/models"
	"github.com/speedrun-hq/paydesk/pkg/orchestrator"
	"github.com/speedrun-hq/paydesk/pkg/projection"
	"github.com/speedrun-hq/paydesk/pkg/session"
	"github.com/speedrun-hq/paydesk/pkg/status"
)

// HistoryStore persists committed payments
type HistoryStore interface {
	Record(ctx context.Context, record models.HistoryRecord) error
	List(ctx context.Context, address string) ([]models.HistoryRecord, error)
}

// Options configures a Service
type Options struct {
	Network string
	// InitRetries is the number of extra client initialisation attempts made by Connect
	InitRetries    int
	InitRetryDelay time.Duration
}

// Snapshot is a point-in-time view of the service for health reporting
type Snapshot struct {
	Network        string         `json:"network"`
	Connected      bool           `json:"connected"`
	Address        string         `json:"address,omitempty"`
	AccountID      string         `json:"account_id,omitempty"`
	RefreshCounter uint64         `json:"refresh_counter"`
	InFlight       []ActionRecord `json:"in_flight"`
}

// Service executes dashboard actions for the connected identity
type Service struct {
	session  *session.Session
	orch     *orchestrator.Orchestrator
	metadata *coins.MetadataCache
	history  HistoryStore
	guard    *ActionGuard
	opts     Options
	logger   logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.RWMutex
	address   string
	accountID string
}

// NewService creates a dashboard service. history may be nil to disable history writes.
func NewService(
	sess *session.Session,
	orch *orchestrator.Orchestrator,
	metadata *coins.MetadataCache,
	history HistoryStore,
	opts Options,
	log logger.Logger,
) *Service {
	if opts.InitRetries < 0 {
		opts.InitRetries = 0
	}
	return &Service{
		session:  sess,
		orch:     orch,
		metadata: metadata,
		history:  history,
		guard:    NewActionGuard(),
		opts:     opts,
		logger:   log,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Connect binds the service to address and accountID, initialising the ledger
// client. Initialisation failures are retried with a fixed delay.
// An empty accountID selects the first account of address.
func (s *Service) Connect(ctx context.Context, address, accountID string) (ledger.Client, error) {
	if !models.IsValidAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	address = models.NormalizeAddress(address)

	var lastErr error
	for attempt := 0; attempt <= s.opts.InitRetries; attempt++ {
		if attempt > 0 {
			s.logger.InfoWithScope(logger.Dashboard, "Retrying client initialisation for %s in %v (attempt %d/%d): %v",
				address, s.opts.InitRetryDelay, attempt+1, s.opts.InitRetries+1, lastErr)
			if err := s.sleep(ctx, s.opts.InitRetryDelay); err != nil {
				return nil, fmt.Errorf("connect %s: %w", address, err)
			}
		}

		client, err := s.session.Client(ctx, address, accountID)
		if err == nil {
			s.mu.Lock()
			s.address = address
			s.accountID = client.AccountID()
			s.mu.Unlock()
			s.logger.InfoWithScope(logger.Dashboard, "Connected %s (account %q)", address, client.AccountID())
			return client, nil
		}
		lastErr = err

		var initErr *session.InitializationError
		if !errors.As(err, &initErr) {
			return nil, err
		}
	}
	return nil, lastErr
}

// SelectAccount switches the connected identity to another of its accounts
func (s *Service) SelectAccount(ctx context.Context, accountID string) error {
	s.mu.RLock()
	address := s.address
	s.mu.RUnlock()
	if address == "" {
		return ErrNotConnected
	}

	client, err := s.session.Client(ctx, address, accountID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accountID = client.AccountID()
	s.mu.Unlock()
	return nil
}

// Disconnect forgets the identity and discards the cached client
func (s *Service) Disconnect() {
	s.mu.Lock()
	s.address = ""
	s.accountID = ""
	s.mu.Unlock()
	s.session.Reset()
}

// Identity returns the connected address and account
func (s *Service) Identity() (address, accountID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address, s.accountID
}

// client returns the live client for the connected identity, re-initialising
// it after a reset
func (s *Service) client(ctx context.Context) (ledger.Client, error) {
	address, accountID := s.Identity()
	if address == "" {
		return nil, ErrNotConnected
	}
	return s.session.Client(ctx, address, accountID)
}

// Snapshot reports the connection state and in-flight actions
func (s *Service) Snapshot() Snapshot {
	address, accountID, connected := s.session.Identity()
	return Snapshot{
		Network:        s.opts.Network,
		Connected:      connected,
		Address:        address,
		AccountID:      accountID,
		RefreshCounter: s.session.RefreshCounter(),
		InFlight:       s.guard.InFlight(),
	}
}

// Accounts lists the payment accounts of the connected address
func (s *Service) Accounts(ctx context.Context) ([]models.Account, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Accounts(ctx)
}

// Account returns the active payment account
func (s *Service) Account(ctx context.Context) (*models.Account, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Account(ctx)
}

// Intents returns the display rows of the active account's intents
func (s *Service) Intents(ctx context.Context, filters projection.Filters) ([]models.DisplayIntent, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	intents, err := client.Intents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch intents: %w", err)
	}

	coinTypes := make([]string, 0, len(intents))
	for _, intent := range intents {
		coinTypes = append(coinTypes, intent.CoinType)
	}
	decimals := s.metadata.Table(ctx, client, coinTypes)

	return projection.Project(intents, client.Address(), s.now(), decimals, filters), nil
}

// Intent returns the display row of a single intent
func (s *Service) Intent(ctx context.Context, key string) (models.DisplayIntent, error) {
	client, err := s.client(ctx)
	if err != nil {
		return models.DisplayIntent{}, err
	}

	intent, err := s.lookupIntent(ctx, client, key)
	if err != nil {
		return models.DisplayIntent{}, err
	}
	decimals := s.metadata.Table(ctx, client, []string{intent.CoinType})
	return projection.ProjectOne(*intent, client.Address(), s.now(), decimals), nil
}

// Balance reconciles the active account's balance of coinType
func (s *Service) Balance(ctx context.Context, coinType string) (models.AccountBalance, error) {
	client, err := s.client(ctx)
	if err != nil {
		return models.AccountBalance{}, err
	}
	return s.balanceOf(ctx, client, coinType)
}

// Balances reconciles the balance of every known coin of the network
func (s *Service) Balances(ctx context.Context) ([]models.AccountBalance, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	known := coins.Known(client.Network())
	balances := make([]models.AccountBalance, 0, len(known))
	for _, coin := range known {
		b, err := s.balanceOf(ctx, client, coin.Type)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, nil
}

// DependencyStatus reports whether the account's verified dependencies are current
func (s *Service) DependencyStatus(ctx context.Context) (*ledger.DependencyStatus, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.DependencyStatus(ctx)
}

// History returns the stored payment history of the connected address
func (s *Service) History(ctx context.Context) ([]models.HistoryRecord, error) {
	address, _ := s.Identity()
	if address == "" {
		return nil, ErrNotConnected
	}
	if s.history == nil {
		return []models.HistoryRecord{}, nil
	}
	return s.history.List(ctx, address)
}

// RefreshEvents subscribes to the refresh signal raised after every settled mutation
func (s *Service) RefreshEvents() (<-chan uint64, func()) {
	return s.session.Subscribe()
}

func (s *Service) lookupIntent(ctx context.Context, client ledger.Reader, key string) (*models.Intent, error) {
	intent, err := client.Intent(ctx, key)
	if errors.Is(err, ledger.ErrNotFound) || (err == nil && intent == nil) {
		return nil, &IntentNotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch intent %s: %w", key, err)
	}
	return intent, nil
}

// checkActionable rejects completed and expired intents
func (s *Service) checkActionable(intent models.Intent) error {
	switch status.Resolve(intent, s.now()) {
	case models.StatusCompleted:
		return fmt.Errorf("intent %s: %w", intent.Key, ErrIntentCompleted)
	case models.StatusExpired:
		expiry, _ := status.EffectiveExpiry(intent)
		return &IntentExpiredError{Key: intent.Key, ExpiredAt: expiry}
	}
	return nil
}

func (s *Service) lockedIDs(ctx context.Context, client ledger.Reader) ([]string, error) {
	locks, err := client.LockedObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locked objects: %w", err)
	}
	return balance.CollectLocked(locks)
}

func (s *Service) balanceOf(ctx context.Context, client ledger.Reader, coinType string) (models.AccountBalance, error) {
	coinObjects, err := client.Coins(ctx, coinType)
	if err != nil {
		return models.AccountBalance{}, fmt.Errorf("failed to fetch %s coins: %w", coinType, err)
	}
	locked, err := s.lockedIDs(ctx, client)
	if err != nil {
		return models.AccountBalance{}, err
	}

	b, err := balance.Reconcile(coinObjects, locked)
	if err != nil {
		return models.AccountBalance{}, err
	}
	b.CoinType = coinType
	return b, nil
}

// spendable fetches the current coins of coinType and selects unlocked ones covering amount
func (s *Service) spendable(ctx context.Context, client ledger.Reader, coinType string, amount *big.Int) ([]string, error) {
	coinObjects, err := client.Coins(ctx, coinType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s coins: %w", coinType, err)
	}
	locked, err := s.lockedIDs(ctx, client)
	if err != nil {
		return nil, err
	}
	return balance.SelectSpendable(coinObjects, locked, amount)
}
