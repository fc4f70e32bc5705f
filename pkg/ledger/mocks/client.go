package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/models"
)

// MockClient is an in-memory ledger.Client for tests
type MockClient struct {
	mu sync.Mutex

	NetworkName string
	Addr        string
	ActiveID    string

	AccountList  []models.Account
	IntentList   []models.Intent
	CoinList     map[string][]models.CoinObject
	Locks        []models.ObjectLock
	Metadata     map[string]ledger.CoinMetadata
	Dependencies ledger.DependencyStatus

	// BuildErr, when set, is returned by every builder call
	BuildErr error
	// ReadErr, when set, is returned by every read call
	ReadErr error

	Built    []string
	Requests []interface{}
	Switches []string
	Closed   bool
}

var _ ledger.Client = (*MockClient)(nil)

// NewMockClient creates a mock client for address with one account
func NewMockClient(address, accountID string) *MockClient {
	return &MockClient{
		NetworkName: "testnet",
		Addr:        models.NormalizeAddress(address),
		ActiveID:    accountID,
		AccountList: []models.Account{{ID: accountID, Name: "main", Owner: models.NormalizeAddress(address)}},
		CoinList:    make(map[string][]models.CoinObject),
		Metadata:    make(map[string]ledger.CoinMetadata),
	}
}

func (m *MockClient) Network() string { return m.NetworkName }
func (m *MockClient) Address() string { return m.Addr }

func (m *MockClient) AccountID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ActiveID
}

func (m *MockClient) SwitchAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.AccountList {
		if acc.ID == accountID {
			m.ActiveID = accountID
			m.Switches = append(m.Switches, accountID)
			return nil
		}
	}
	return fmt.Errorf("account %s: %w", accountID, ledger.ErrNotFound)
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

// IsClosed reports whether Close was called
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

func (m *MockClient) Accounts(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.Account(nil), m.AccountList...), nil
}

func (m *MockClient) Account(_ context.Context) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	for _, acc := range m.AccountList {
		if acc.ID == m.ActiveID {
			acc := acc
			return &acc, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", m.ActiveID, ledger.ErrNotFound)
}

func (m *MockClient) Intents(_ context.Context) ([]models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.Intent(nil), m.IntentList...), nil
}

func (m *MockClient) Intent(_ context.Context, key string) (*models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	for _, in := range m.IntentList {
		if in.Key == key {
			in := in
			return &in, nil
		}
	}
	return nil, fmt.Errorf("intent %s: %w", key, ledger.ErrNotFound)
}

func (m *MockClient) Coins(_ context.Context, coinType string) ([]models.CoinObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.CoinObject(nil), m.CoinList[coinType]...), nil
}

// SetCoins replaces the coins of coinType
func (m *MockClient) SetCoins(coinType string, coins []models.CoinObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CoinList[coinType] = coins
}

func (m *MockClient) LockedObjects(_ context.Context) ([]models.ObjectLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.ObjectLock(nil), m.Locks...), nil
}

func (m *MockClient) CoinMetadata(_ context.Context, coinType string) (*ledger.CoinMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.Metadata[coinType]
	if !ok {
		return nil, fmt.Errorf("coin metadata %s: %w", coinType, ledger.ErrNotFound)
	}
	return &meta, nil
}

func (m *MockClient) DependencyStatus(_ context.Context) (*ledger.DependencyStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	deps := m.Dependencies
	return &deps, nil
}

func (m *MockClient) build(operation string, req interface{}) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BuildErr != nil {
		return nil, m.BuildErr
	}
	m.Built = append(m.Built, operation)
	m.Requests = append(m.Requests, req)
	return &ledger.Transaction{
		Operation: operation,
		Sender:    m.Addr,
		Bytes:     fmt.Sprintf("%s-%d", operation, len(m.Built)),
	}, nil
}

// BuiltOperations returns the builder calls made so far
func (m *MockClient) BuiltOperations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Built...)
}

func (m *MockClient) CreateAccount(_ context.Context, name string) (*ledger.Transaction, error) {
	return m.build("create_account", name)
}

func (m *MockClient) IssuePayment(_ context.Context, req ledger.IssuePaymentRequest) (*ledger.Transaction, error) {
	return m.build("issue_payment", req)
}

func (m *MockClient) MakePayment(_ context.Context, req ledger.MakePaymentRequest) (*ledger.Transaction, error) {
	return m.build("make_payment", req)
}

func (m *MockClient) Transfer(_ context.Context, req ledger.TransferRequest) (*ledger.Transaction, error) {
	return m.build("transfer", req)
}

func (m *MockClient) InitiateWithdraw(_ context.Context, req ledger.InitiateWithdrawRequest) (*ledger.Transaction, error) {
	return m.build("initiate_withdraw", req)
}

func (m *MockClient) ConfirmWithdraw(_ context.Context, intentKey string) (*ledger.Transaction, error) {
	return m.build("confirm_withdraw", intentKey)
}

func (m *MockClient) SetRecoveryAddress(_ context.Context, backup string) (*ledger.Transaction, error) {
	return m.build("set_recovery_address", backup)
}

func (m *MockClient) ModifyName(_ context.Context, name string) (*ledger.Transaction, error) {
	return m.build("modify_name", name)
}

func (m *MockClient) UpdateVerifiedDeps(_ context.Context) (*ledger.Transaction, error) {
	return m.build("update_verified_deps", nil)
}

// LastRequest returns the request of the most recent builder call
func (m *MockClient) LastRequest() interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}
