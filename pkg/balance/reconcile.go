package balance

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
	"github.com/speedrun-hq/paydesk/pkg/models"
)

// ErrBalanceInconsistent signals upstream data that cannot describe a real balance
var ErrBalanceInconsistent = errors.New("balance data inconsistent")

// InsufficientAvailableBalanceError is returned when a withdrawal asks for more than the unlocked balance
type InsufficientAvailableBalanceError struct {
	Available *uint256.Int
	Requested *big.Int
}

func (e *InsufficientAvailableBalanceError) Error() string {
	return fmt.Sprintf("insufficient available balance: requested %s, available %s",
		e.Requested.String(), e.Available.ToBig().String())
}

// DoubleLockError is returned when one coin object is reserved by more than one withdrawal intent
type DoubleLockError struct {
	ObjectID   string
	IntentKeys []string
}

func (e *DoubleLockError) Error() string {
	return fmt.Sprintf("coin object %s is locked by multiple intents: %s",
		e.ObjectID, strings.Join(e.IntentKeys, ", "))
}

// Reconcile folds the coin objects of an account into a total/locked/available tuple.
// A coin counts as locked when its object id is in lockedIDs; each object is counted once
// no matter how many times it appears in either input.
func Reconcile(coins []models.CoinObject, lockedIDs []string) (models.AccountBalance, error) {
	locked := mapset.NewThreadUnsafeSet[string](lockedIDs...)

	seen := make(map[string]uint64, len(coins))
	total := new(uint256.Int)
	lockedSum := new(uint256.Int)

	for _, coin := range coins {
		if prev, ok := seen[coin.ObjectID]; ok {
			if prev != coin.Amount {
				return models.AccountBalance{}, fmt.Errorf("%w: coin object %s reported with amounts %d and %d",
					ErrBalanceInconsistent, coin.ObjectID, prev, coin.Amount)
			}
			continue
		}
		seen[coin.ObjectID] = coin.Amount

		amount := uint256.NewInt(coin.Amount)
		if _, overflow := total.AddOverflow(total, amount); overflow {
			return models.AccountBalance{}, fmt.Errorf("%w: total overflows", ErrBalanceInconsistent)
		}
		if locked.Contains(coin.ObjectID) {
			if _, overflow := lockedSum.AddOverflow(lockedSum, amount); overflow {
				return models.AccountBalance{}, fmt.Errorf("%w: locked amount overflows", ErrBalanceInconsistent)
			}
		}
	}

	available, underflow := new(uint256.Int).SubOverflow(total, lockedSum)
	if underflow {
		return models.AccountBalance{}, fmt.Errorf("%w: locked %s exceeds total %s",
			ErrBalanceInconsistent, lockedSum.ToBig().String(), total.ToBig().String())
	}

	return models.AccountBalance{
		Total:     total,
		Locked:    lockedSum,
		Available: available,
	}, nil
}

// CheckWithdrawable rejects a withdrawal request that exceeds the available balance
func CheckWithdrawable(b models.AccountBalance, requested *big.Int) error {
	if requested == nil || requested.Sign() <= 0 {
		return fmt.Errorf("invalid withdrawal amount: %v", requested)
	}

	available := b.Available
	if available == nil {
		available = new(uint256.Int)
	}

	req, overflow := uint256.FromBig(requested)
	if overflow || req.Gt(available) {
		return &InsufficientAvailableBalanceError{
			Available: available.Clone(),
			Requested: new(big.Int).Set(requested),
		}
	}
	return nil
}

// CollectLocked flattens per-intent object locks into the set of locked object ids.
// An object reserved by two different intents yields a DoubleLockError.
func CollectLocked(locks []models.ObjectLock) ([]string, error) {
	owners := make(map[string]string, len(locks))
	for _, lock := range locks {
		owner, ok := owners[lock.ObjectID]
		if ok && owner != lock.IntentKey {
			keys := []string{owner, lock.IntentKey}
			sort.Strings(keys)
			return nil, &DoubleLockError{ObjectID: lock.ObjectID, IntentKeys: keys}
		}
		owners[lock.ObjectID] = lock.IntentKey
	}

	ids := make([]string, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
