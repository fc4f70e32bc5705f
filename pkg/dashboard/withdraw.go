package dashboard

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/balance"
	"github.com/speedrun-hq/paydesk/pkg/coins"
	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/models"
	"github.com/speedrun-hq/paydesk/pkg/orchestrator"
	"github.com/speedrun-hq/paydesk/pkg/status"
)

const (
	opInitiateWithdraw = "initiate_withdraw"
	opConfirmWithdraw  = "confirm_withdraw"

	// DefaultWithdrawExpiration is the lifetime of a withdrawal awaiting confirmation
	DefaultWithdrawExpiration = 24 * time.Hour
)

// WithdrawRequest starts a withdrawal from the active account
type WithdrawRequest struct {
	Recipient string
	Amount    *big.Int
	CoinType  string
	// Expiration is relative to now; zero uses DefaultWithdrawExpiration
	Expiration time.Duration
}

// Role returns the withdrawal role of the connected identity on the active account
func (s *Service) Role(ctx context.Context) (orchestrator.Role, error) {
	client, err := s.client(ctx)
	if err != nil {
		return orchestrator.RoleObserver, err
	}
	return s.roleOf(ctx, client)
}

func (s *Service) roleOf(ctx context.Context, client ledger.Client) (orchestrator.Role, error) {
	account, err := client.Account(ctx)
	if err != nil {
		return orchestrator.RoleObserver, fmt.Errorf("failed to fetch account: %w", err)
	}
	return orchestrator.ResolveRole(*account, client.Address()), nil
}

// WithdrawAction returns the role of the connected identity and the step it
// may take on the withdrawal intent
func (s *Service) WithdrawAction(ctx context.Context, intentKey string) (orchestrator.Role, orchestrator.Action, error) {
	client, err := s.client(ctx)
	if err != nil {
		return orchestrator.RoleObserver, orchestrator.ActionNone, err
	}

	intent, err := s.lookupIntent(ctx, client, intentKey)
	if err != nil {
		return orchestrator.RoleObserver, orchestrator.ActionNone, err
	}
	if intent.Kind != models.KindWithdrawAndTransfer {
		return orchestrator.RoleObserver, orchestrator.ActionNone,
			fmt.Errorf("intent %s is a %s intent: %w", intent.Key, intent.Kind, ErrWrongIntentKind)
	}

	role, err := s.roleOf(ctx, client)
	if err != nil {
		return orchestrator.RoleObserver, orchestrator.ActionNone, err
	}
	return role, orchestrator.AvailableAction(role, status.Resolve(*intent, s.now())), nil
}

// InitiateWithdraw reserves coins for a withdrawal. Only the account owner may
// initiate, and only up to the available balance.
func (s *Service) InitiateWithdraw(ctx context.Context, req WithdrawRequest) (*orchestrator.Result, error) {
	if !models.IsValidAddress(req.Recipient) {
		return nil, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, req.Recipient)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, req.Amount)
	}
	coinType := req.CoinType
	if coinType == "" {
		coinType = coins.SUI
	}
	expiration := req.Expiration
	if expiration <= 0 {
		expiration = DefaultWithdrawExpiration
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	role, err := s.roleOf(ctx, client)
	if err != nil {
		return nil, err
	}
	if err := orchestrator.Authorize(role, orchestrator.ActionInitiate); err != nil {
		return nil, err
	}

	b, err := s.balanceOf(ctx, client, coinType)
	if err != nil {
		return nil, err
	}
	if err := balance.CheckWithdrawable(b, req.Amount); err != nil {
		return nil, err
	}

	recipient := models.NormalizeAddress(req.Recipient)
	key := fmt.Sprintf("%s:%s:%s:%s:%s", opInitiateWithdraw, client.AccountID(), recipient, coinType, req.Amount)
	if _, err := s.guard.Begin(key); err != nil {
		return nil, err
	}
	defer s.guard.Finish(key)

	expiresAt := s.now().Add(expiration)
	result, err := s.orch.Submit(ctx, opInitiateWithdraw, func(ctx context.Context) (*ledger.Transaction, error) {
		ids, err := s.spendable(ctx, client, coinType, req.Amount)
		if err != nil {
			return nil, err
		}
		return client.InitiateWithdraw(ctx, ledger.InitiateWithdrawRequest{
			Recipient:     recipient,
			Amount:        req.Amount,
			CoinType:      coinType,
			CoinObjectIDs: ids,
			ExpiresAt:     expiresAt,
		})
	})
	if err != nil {
		return result, err
	}

	s.session.TriggerRefresh()
	return result, nil
}

// ConfirmWithdraw completes a pending withdrawal. Only the backup may confirm.
func (s *Service) ConfirmWithdraw(ctx context.Context, intentKey string) (*orchestrator.Result, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	intent, err := s.lookupIntent(ctx, client, intentKey)
	if err != nil {
		return nil, err
	}
	if intent.Kind != models.KindWithdrawAndTransfer {
		return nil, fmt.Errorf("intent %s is a %s intent: %w", intent.Key, intent.Kind, ErrWrongIntentKind)
	}
	if err := s.checkActionable(*intent); err != nil {
		return nil, err
	}

	role, err := s.roleOf(ctx, client)
	if err != nil {
		return nil, err
	}
	if err := orchestrator.Authorize(role, orchestrator.ActionConfirm); err != nil {
		return nil, err
	}

	key := opConfirmWithdraw + ":" + intent.Key
	if _, err := s.guard.Begin(key); err != nil {
		return nil, err
	}
	defer s.guard.Finish(key)

	result, err := s.orch.Submit(ctx, opConfirmWithdraw, func(ctx context.Context) (*ledger.Transaction, error) {
		return client.ConfirmWithdraw(ctx, intent.Key)
	})
	if err != nil {
		return result, err
	}

	s.session.TriggerRefresh()
	return result, nil
}
