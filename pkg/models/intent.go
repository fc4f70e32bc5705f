package models

import (
	"math/big"
	"strings"
)

// Kind determines how the fields of an intent are interpreted
type Kind int

const (
	// KindPay is a payment request issued by a payee
	KindPay Kind = iota
	// KindWithdrawAndTransfer is an owner-initiated withdrawal awaiting backup confirmation
	KindWithdrawAndTransfer
)

func (k Kind) String() string {
	switch k {
	case KindWithdrawAndTransfer:
		return "withdraw_and_transfer"
	default:
		return "pay"
	}
}

// withdrawTypeMarker is the Move struct name carried in the type tag of withdrawal intents
const withdrawTypeMarker = "WithdrawAndTransferIntent"

// ParseKind resolves the intent kind from the raw type tag reported by the ledger.
// It must only be called when a record is ingested.
func ParseKind(typeTag string) Kind {
	if strings.Contains(typeTag, withdrawTypeMarker) {
		return KindWithdrawAndTransfer
	}
	return KindPay
}

// Stage is the raw lifecycle marker reported by the ledger
type Stage string

const (
	StagePending    Stage = "pending"
	StageExecutable Stage = "executable"
	StageResolved   Stage = "resolved"
)

// ParseStage maps a ledger stage string, defaulting unknown values to pending
func ParseStage(s string) Stage {
	switch Stage(strings.ToLower(s)) {
	case StageExecutable:
		return StageExecutable
	case StageResolved:
		return StageResolved
	default:
		return StagePending
	}
}

// Status is the derived lifecycle value shown to users
type Status string

const (
	StatusPending    Status = "pending"
	StatusExecutable Status = "executable"
	StatusExpired    Status = "expired"
	StatusCompleted  Status = "completed"
)

// Intent represents a pending or resolved unit of payment work
type Intent struct {
	Key         string
	Kind        Kind
	Creator     string
	Issuer      string
	Recipient   string
	Description string
	Amount      *big.Int
	CoinType    string
	// CreationTime is epoch millis, nil when the ledger did not report it.
	CreationTime *int64
	// ExpirationTime is an absolute epoch millis value for withdrawals and a
	// duration in millis relative to CreationTime for payments.
	ExpirationTime  *int64
	Stage           Stage
	LockedObjectIDs []string
}

// Millis returns a pointer to v, for building intents with optional timestamps
func Millis(v int64) *int64 {
	return &v
}

// AmountString returns the amount in smallest units, "0" when unset
func (i Intent) AmountString() string {
	if i.Amount == nil {
		return "0"
	}
	return i.Amount.String()
}

// Direction tells whether an intent moves funds towards or away from the viewer
type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
)

// DisplayIntent is the display-ready projection of an intent
type DisplayIntent struct {
	Key             string    `json:"key"`
	Kind            string    `json:"kind"`
	Status          Status    `json:"status"`
	Direction       Direction `json:"direction"`
	Creator         string    `json:"creator"`
	Counterparty    string    `json:"counterparty"`
	Description     string    `json:"description,omitempty"`
	Amount          string    `json:"amount"`
	FormattedAmount string    `json:"formatted_amount"`
	CoinType        string    `json:"coin_type"`
	CreationTime    int64     `json:"creation_time"`
	ExpiresAt       int64     `json:"expires_at,omitempty"`
}
