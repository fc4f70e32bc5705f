package dashboard

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned by actions issued before Connect
	ErrNotConnected = errors.New("no identity connected")

	// ErrIntentCompleted is returned when acting on an intent that already resolved
	ErrIntentCompleted = errors.New("intent already completed")

	// ErrActionInFlight is returned when an identical action is still executing
	ErrActionInFlight = errors.New("action already in flight")

	// ErrInvalidAddress is returned for malformed ledger addresses
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidAmount is returned for missing, zero or negative amounts
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrWrongIntentKind is returned when an action targets an intent of the other kind
	ErrWrongIntentKind = errors.New("wrong intent kind")

	// ErrEmptyName is returned when an account name is blank
	ErrEmptyName = errors.New("account name must not be empty")
)

// IntentNotFoundError is returned when the ledger has no intent for Key
type IntentNotFoundError struct {
	Key string
}

func (e *IntentNotFoundError) Error() string {
	return fmt.Sprintf("intent %s not found", e.Key)
}

// IntentExpiredError is returned when acting on an intent past its expiry
type IntentExpiredError struct {
	Key string
	// ExpiredAt is epoch millis
	ExpiredAt int64
}

func (e *IntentExpiredError) Error() string {
	return fmt.Sprintf("intent %s expired at %s", e.Key, time.UnixMilli(e.ExpiredAt).UTC().Format(time.RFC3339))
}
