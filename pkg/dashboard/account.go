package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/models"
	"github.com/speedrun-hq/paydesk/pkg/orchestrator"
)

const (
	opCreateAccount      = "create_account"
	opSetRecoveryAddress = "set_recovery_address"
	opModifyName         = "modify_name"
	opUpdateVerifiedDeps = "update_verified_deps"
)

// CreateAccount creates a new payment account owned by the connected address
func (s *Service) CreateAccount(ctx context.Context, name string) (*orchestrator.Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	return s.mutateAccount(ctx, opCreateAccount, client.Address()+":"+name, func(ctx context.Context) (*ledger.Transaction, error) {
		return client.CreateAccount(ctx, name)
	})
}

// SetRecoveryAddress sets the backup that confirms withdrawals. Owner only.
func (s *Service) SetRecoveryAddress(ctx context.Context, backup string) (*orchestrator.Result, error) {
	if !models.IsValidAddress(backup) {
		return nil, fmt.Errorf("%w: backup %q", ErrInvalidAddress, backup)
	}
	backup = models.NormalizeAddress(backup)

	client, err := s.ownerClient(ctx, opSetRecoveryAddress)
	if err != nil {
		return nil, err
	}

	return s.mutateAccount(ctx, opSetRecoveryAddress, client.AccountID(), func(ctx context.Context) (*ledger.Transaction, error) {
		return client.SetRecoveryAddress(ctx, backup)
	})
}

// ModifyName renames the active account. Owner only.
func (s *Service) ModifyName(ctx context.Context, name string) (*orchestrator.Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	client, err := s.ownerClient(ctx, opModifyName)
	if err != nil {
		return nil, err
	}

	return s.mutateAccount(ctx, opModifyName, client.AccountID(), func(ctx context.Context) (*ledger.Transaction, error) {
		return client.ModifyName(ctx, name)
	})
}

// UpdateVerifiedDeps moves the account onto the latest verified dependencies. Owner only.
func (s *Service) UpdateVerifiedDeps(ctx context.Context) (*orchestrator.Result, error) {
	client, err := s.ownerClient(ctx, opUpdateVerifiedDeps)
	if err != nil {
		return nil, err
	}

	return s.mutateAccount(ctx, opUpdateVerifiedDeps, client.AccountID(), func(ctx context.Context) (*ledger.Transaction, error) {
		return client.UpdateVerifiedDeps(ctx)
	})
}

func (s *Service) ownerClient(ctx context.Context, operation string) (ledger.Client, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	role, err := s.roleOf(ctx, client)
	if err != nil {
		return nil, err
	}
	if role != orchestrator.RoleOwner {
		return nil, fmt.Errorf("%s cannot %s: %w", role, operation, orchestrator.ErrActionNotPermitted)
	}
	return client, nil
}

// mutateAccount submits an identity-level mutation. Once it settles the cached
// client is discarded so later reads see the new account state.
func (s *Service) mutateAccount(ctx context.Context, operation, subject string, build orchestrator.BuildFunc) (*orchestrator.Result, error) {
	key := operation + ":" + subject
	if _, err := s.guard.Begin(key); err != nil {
		return nil, err
	}
	defer s.guard.Finish(key)

	result, err := s.orch.Submit(ctx, operation, build)
	if err != nil {
		return result, err
	}

	s.session.Reset()
	s.session.TriggerRefresh()
	s.logger.InfoWithScope(logger.Dashboard, "%s settled in %s, client reset", operation, result.Digest())
	return result, nil
}
