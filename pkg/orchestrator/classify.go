package orchestrator

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/speedrun-hq/paydesk/pkg/ledger"
)

// Wallet error codes that mean the user declined to sign
const (
	codeUserRejected     = 4001
	codeRejectedInternal = -32603
)

// cancellationSubstrings match rejection wording from wallets that do not send a code
var cancellationSubstrings = []string{"user", "reject", "cancel", "denied", "abort"}

type cancellationSignal struct {
	name  string
	match func(err error) bool
}

var cancellationSignals = []cancellationSignal{
	{
		name: "wallet_rejection_code",
		match: func(err error) bool {
			var coded rpc.Error
			if !errors.As(err, &coded) {
				return false
			}
			code := coded.ErrorCode()
			return code == codeUserRejected || code == codeRejectedInternal
		},
	},
	{
		name: "rejection_message",
		match: func(err error) bool {
			msg := strings.ToLower(err.Error())
			for _, s := range cancellationSubstrings {
				if strings.Contains(msg, s) {
					return true
				}
			}
			return false
		},
	},
}

// ClassifyError reports whether err, or any error it wraps, is a user
// cancellation, and which signal matched. A transaction that failed on chain
// was signed, so its abort codes never count as a cancellation.
func ClassifyError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}
	var executed *ledger.ExecutionError
	if errors.As(err, &executed) {
		return false, ""
	}
	// ledger nodes reuse -32603 for internal errors
	var built *buildError
	if errors.As(err, &built) {
		return false, ""
	}

	cancelled, signal := false, ""
	walkChain(err, func(e error) bool {
		for _, s := range cancellationSignals {
			if s.match(e) {
				cancelled, signal = true, s.name
				return true
			}
		}
		return false
	})
	return cancelled, signal
}

// IsCancellation reports whether err is a user cancellation
func IsCancellation(err error) bool {
	cancelled, _ := ClassifyError(err)
	return cancelled
}

// walkChain visits err and every error it wraps until visit returns true
func walkChain(err error, visit func(error) bool) bool {
	if err == nil {
		return false
	}
	if visit(err) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return walkChain(u.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if walkChain(inner, visit) {
				return true
			}
		}
	}
	return false
}
