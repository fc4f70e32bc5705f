package projection

import (
	"math/big"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/speedrun-hq/paydesk/pkg/models"
	"github.com/speedrun-hq/paydesk/pkg/status"
)

// DecimalsSource resolves the precision of a coin type
type DecimalsSource interface {
	Decimals(coinType string) uint8
}

// Filters narrows a projected listing. Zero values match everything.
type Filters struct {
	Statuses  []models.Status
	Direction models.Direction
	Text      string
}

// Project maps raw intents into sorted, filtered display rows for viewer.
// Filters run in a fixed order: status, direction, then text.
func Project(intents []models.Intent, viewer string, now time.Time, decimals DecimalsSource, filters Filters) []models.DisplayIntent {
	sorted := append([]models.Intent(nil), intents...)
	SortNewestFirst(sorted)

	rows := make([]models.DisplayIntent, 0, len(sorted))
	for _, intent := range sorted {
		rows = append(rows, ProjectOne(intent, viewer, now, decimals))
	}

	rows = FilterStatus(rows, filters.Statuses)
	rows = FilterDirection(rows, filters.Direction)
	rows = FilterText(rows, filters.Text)
	return rows
}

// ProjectOne builds the display row of a single intent
func ProjectOne(intent models.Intent, viewer string, now time.Time, decimals DecimalsSource) models.DisplayIntent {
	row := models.DisplayIntent{
		Key:             intent.Key,
		Kind:            intent.Kind.String(),
		Status:          status.Resolve(intent, now),
		Direction:       Direction(intent, viewer),
		Creator:         intent.Creator,
		Counterparty:    counterparty(intent, viewer),
		Description:     intent.Description,
		Amount:          intent.AmountString(),
		FormattedAmount: FormatAmount(intent.Amount, decimals.Decimals(intent.CoinType)),
		CoinType:        intent.CoinType,
	}
	if intent.CreationTime != nil {
		row.CreationTime = *intent.CreationTime
	}
	if expiry, ok := status.EffectiveExpiry(intent); ok {
		row.ExpiresAt = expiry
	}
	return row
}

// Direction tells whether intent moves funds towards viewer. A payment request
// is incoming for its issuer and creator; a withdrawal is outgoing for its creator.
func Direction(intent models.Intent, viewer string) models.Direction {
	switch intent.Kind {
	case models.KindWithdrawAndTransfer:
		if models.SameAddress(intent.Creator, viewer) {
			return models.DirectionSent
		}
		return models.DirectionReceived
	default:
		if models.SameAddress(intent.Issuer, viewer) || models.SameAddress(intent.Creator, viewer) {
			return models.DirectionReceived
		}
		return models.DirectionSent
	}
}

func counterparty(intent models.Intent, viewer string) string {
	switch intent.Kind {
	case models.KindWithdrawAndTransfer:
		if models.SameAddress(intent.Creator, viewer) {
			return intent.Recipient
		}
		return intent.Creator
	default:
		if Direction(intent, viewer) == models.DirectionSent {
			if intent.Issuer != "" {
				return intent.Issuer
			}
			return intent.Creator
		}
		return intent.Recipient
	}
}

// SortNewestFirst orders intents by creation time descending, then key ascending.
// Intents without a creation time go last.
func SortNewestFirst(intents []models.Intent) {
	sort.SliceStable(intents, func(i, j int) bool {
		a, b := intents[i].CreationTime, intents[j].CreationTime
		switch {
		case a != nil && b != nil && *a != *b:
			return *a > *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return intents[i].Key < intents[j].Key
	})
}

// FilterStatus keeps rows whose status is in statuses
func FilterStatus(rows []models.DisplayIntent, statuses []models.Status) []models.DisplayIntent {
	if len(statuses) == 0 {
		return rows
	}
	wanted := mapset.NewThreadUnsafeSet[models.Status](statuses...)
	return filter(rows, func(r models.DisplayIntent) bool {
		return wanted.Contains(r.Status)
	})
}

// FilterDirection keeps rows moving in direction
func FilterDirection(rows []models.DisplayIntent, direction models.Direction) []models.DisplayIntent {
	if direction == "" {
		return rows
	}
	return filter(rows, func(r models.DisplayIntent) bool {
		return r.Direction == direction
	})
}

// FilterText keeps rows where text appears, case-insensitively, in the
// description, an address, the raw or formatted amount, or the key
func FilterText(rows []models.DisplayIntent, text string) []models.DisplayIntent {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return rows
	}
	return filter(rows, func(r models.DisplayIntent) bool {
		for _, field := range []string{r.Description, r.Creator, r.Counterparty, r.Amount, r.FormattedAmount, r.Key} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	})
}

func filter(rows []models.DisplayIntent, keep func(models.DisplayIntent) bool) []models.DisplayIntent {
	out := rows[:0:0]
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// FormatAmount renders amount in whole units with trailing fractional zeros removed
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, unit, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		digits := frac.String()
		digits = strings.Repeat("0", int(decimals)-len(digits)) + digits
		out += "." + strings.TrimRight(digits, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
