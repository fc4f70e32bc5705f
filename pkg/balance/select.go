package balance

import (
	"fmt"
	"math/big"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
	"github.com/speedrun-hq/paydesk/pkg/models"
)

// SelectSpendable picks unlocked coin objects covering amount, largest first.
// It returns the selected object ids in selection order.
func SelectSpendable(coins []models.CoinObject, lockedIDs []string, amount *big.Int) ([]string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount: %v", amount)
	}

	locked := mapset.NewThreadUnsafeSet[string](lockedIDs...)
	seen := mapset.NewThreadUnsafeSet[string]()

	candidates := make([]models.CoinObject, 0, len(coins))
	for _, coin := range coins {
		if locked.Contains(coin.ObjectID) || !seen.Add(coin.ObjectID) {
			continue
		}
		candidates = append(candidates, coin)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Amount != candidates[j].Amount {
			return candidates[i].Amount > candidates[j].Amount
		}
		return candidates[i].ObjectID < candidates[j].ObjectID
	})

	target, overflow := uint256.FromBig(amount)
	sum := new(uint256.Int)
	var selected []string
	if !overflow {
		for _, coin := range candidates {
			selected = append(selected, coin.ObjectID)
			sum.Add(sum, uint256.NewInt(coin.Amount))
			if !sum.Lt(target) {
				return selected, nil
			}
		}
	} else {
		for _, coin := range candidates {
			sum.Add(sum, uint256.NewInt(coin.Amount))
		}
	}

	return nil, &InsufficientAvailableBalanceError{
		Available: sum,
		Requested: new(big.Int).Set(amount),
	}
}
