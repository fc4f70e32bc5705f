package orchestrator

import (
	"fmt"

	"github.com/speedrun-hq/paydesk/pkg/models"
)

// Role is the part an identity plays in the two-party withdrawal
type Role int

const (
	RoleObserver Role = iota
	RoleOwner
	RoleBackup
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleBackup:
		return "backup"
	default:
		return "observer"
	}
}

// Action is the withdrawal step available to an identity
type Action int

const (
	ActionNone Action = iota
	ActionInitiate
	ActionConfirm
)

func (a Action) String() string {
	switch a {
	case ActionInitiate:
		return "initiate"
	case ActionConfirm:
		return "confirm"
	default:
		return "none"
	}
}

// ResolveRole returns the role of identity for account. The owner role wins
// when the owner also set itself as backup.
func ResolveRole(account models.Account, identity string) Role {
	switch {
	case models.SameAddress(account.Owner, identity):
		return RoleOwner
	case models.SameAddress(account.Backup, identity):
		return RoleBackup
	default:
		return RoleObserver
	}
}

// AvailableAction returns the withdrawal step role may take on an intent in status.
// The owner may always start a new withdrawal; the backup may only confirm a
// withdrawal that is still pending or executable.
func AvailableAction(role Role, status models.Status) Action {
	switch role {
	case RoleOwner:
		return ActionInitiate
	case RoleBackup:
		if status == models.StatusPending || status == models.StatusExecutable {
			return ActionConfirm
		}
	}
	return ActionNone
}

// Authorize returns ErrActionNotPermitted unless role may take action
func Authorize(role Role, action Action) error {
	switch {
	case action == ActionInitiate && role == RoleOwner:
		return nil
	case action == ActionConfirm && role == RoleBackup:
		return nil
	}
	return fmt.Errorf("%s cannot %s a withdrawal: %w", role, action, ErrActionNotPermitted)
}
