// Package status derives the user-facing lifecycle state of an intent.
//
// Resolve is the single source of truth for expiration: the same Pay and
// WithdrawAndTransfer rules are used by listings, detail views and every
// precondition check before a transaction is submitted.
package status

import (
	"math"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/models"
)

// EffectiveExpiry returns the absolute expiry of an intent in epoch millis.
// The second value is false when the intent does not expire, which is the case
// whenever the creation or expiration time is missing or the expiry is beyond
// the representable range.
func EffectiveExpiry(intent models.Intent) (int64, bool) {
	if intent.CreationTime == nil || intent.ExpirationTime == nil {
		return 0, false
	}

	switch intent.Kind {
	case models.KindWithdrawAndTransfer:
		// already absolute
		return *intent.ExpirationTime, true
	default:
		// duration relative to creation; a sum past MaxInt64 never expires
		creation, duration := *intent.CreationTime, *intent.ExpirationTime
		if duration > 0 && creation > math.MaxInt64-duration {
			return 0, false
		}
		return creation + duration, true
	}
}

// Resolve computes the status of an intent at the given time
func Resolve(intent models.Intent, now time.Time) models.Status {
	if intent.Stage == models.StageResolved {
		return models.StatusCompleted
	}

	if expiry, ok := EffectiveExpiry(intent); ok && now.UnixMilli() > expiry {
		return models.StatusExpired
	}

	if intent.Stage == models.StageExecutable {
		return models.StatusExecutable
	}
	return models.StatusPending
}

// IsActionable reports whether an intent can still be acted on at the given time
func IsActionable(intent models.Intent, now time.Time) bool {
	s := Resolve(intent, now)
	return s == models.StatusPending || s == models.StatusExecutable
}
