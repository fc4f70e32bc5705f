package models

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is a payment account with an owner and an optional backup (recovery) address
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Owner  string `json:"owner"`
	Backup string `json:"backup,omitempty"`
}

// CoinObject is a spendable coin owned by an account
type CoinObject struct {
	ObjectID string
	Amount   uint64
}

// ObjectLock records a coin object reserved by a pending withdrawal intent
type ObjectLock struct {
	ObjectID  string
	IntentKey string
}

// AccountBalance holds the balance of one account for one coin type.
// Available is always Total minus Locked.
type AccountBalance struct {
	CoinType  string
	Total     *uint256.Int
	Locked    *uint256.Int
	Available *uint256.Int
}

// HistoryRecord is a committed payment forwarded to the history API
type HistoryRecord struct {
	PaymentID string    `json:"payment_id"`
	Amount    string    `json:"amount"`
	Tip       string    `json:"tip,omitempty"`
	Payer     string    `json:"payer"`
	Payee     string    `json:"payee"`
	CoinType  string    `json:"coin_type"`
	TxHash    string    `json:"tx_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeAddress returns the canonical 32-byte, lower-case, 0x-prefixed form
// of a ledger address so that short and long spellings compare equal.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	return common.HexToHash(addr).Hex()
}

// IsValidAddress reports whether addr is a 0x-prefixed hex string of at most 32 bytes
func IsValidAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	digits := addr[2:]
	if len(digits) == 0 || len(digits) > 2*common.HashLength {
		return false
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	_, err := hex.DecodeString(digits)
	return err == nil
}

// SameAddress compares two addresses in canonical form; empty addresses never match
func SameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeAddress(a) == NormalizeAddress(b)
}
