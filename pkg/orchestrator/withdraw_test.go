package orchestrator

import (
	"errors"
	"testing"

	"github.com/speedrun-hq/paydesk/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestResolveRole(t *testing.T) {
	account := models.Account{
		ID:     "acc",
		Owner:  models.NormalizeAddress("0xa11ce"),
		Backup: models.NormalizeAddress("0xb0b"),
	}

	assert.Equal(t, RoleOwner, ResolveRole(account, "0xa11ce"))
	assert.Equal(t, RoleBackup, ResolveRole(account, "0x0b0b"))
	assert.Equal(t, RoleObserver, ResolveRole(account, "0xcafe"))
	assert.Equal(t, RoleObserver, ResolveRole(account, ""))

	noBackup := models.Account{Owner: account.Owner}
	assert.Equal(t, RoleObserver, ResolveRole(noBackup, ""))
}

func TestAvailableAction(t *testing.T) {
	tests := []struct {
		role     Role
		status   models.Status
		expected Action
	}{
		{RoleOwner, models.StatusPending, ActionInitiate},
		{RoleOwner, models.StatusExpired, ActionInitiate},
		{RoleBackup, models.StatusPending, ActionConfirm},
		{RoleBackup, models.StatusExecutable, ActionConfirm},
		{RoleBackup, models.StatusExpired, ActionNone},
		{RoleBackup, models.StatusCompleted, ActionNone},
		{RoleObserver, models.StatusPending, ActionNone},
		{RoleObserver, models.StatusExecutable, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.role.String()+"_"+string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, AvailableAction(tt.role, tt.status))
		})
	}
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(RoleOwner, ActionInitiate))
	assert.NoError(t, Authorize(RoleBackup, ActionConfirm))

	for _, err := range []error{
		Authorize(RoleBackup, ActionInitiate),
		Authorize(RoleOwner, ActionConfirm),
		Authorize(RoleObserver, ActionInitiate),
		Authorize(RoleObserver, ActionConfirm),
	} {
		assert.True(t, errors.Is(err, ErrActionNotPermitted))
	}
	assert.ErrorContains(t, Authorize(RoleOwner, ActionConfirm), "owner cannot confirm")
}
