package dashboard

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/coins"
	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/models"
	"github.com/speedrun-hq/paydesk/pkg/orchestrator"
)

const (
	opIssuePayment = "issue_payment"
	opMakePayment  = "make_payment"
	opTip          = "tip"
)

// IssueRequest creates a payment request payable by anyone
type IssueRequest struct {
	Amount      *big.Int
	CoinType    string
	Description string
	// Expiration is relative to the creation time. Zero means the request never expires.
	Expiration time.Duration
}

// PayRequest pays a payment intent, optionally followed by a tip to the payee
type PayRequest struct {
	IntentKey string
	Tip       *big.Int
}

// PayResult reports a committed payment
type PayResult struct {
	Payment *orchestrator.PaymentResult
	// Record is the history entry written for the payment
	Record *models.HistoryRecord
	// HistoryWarning is set when the committed payment could not be recorded
	HistoryWarning error
}

// Digest returns the digest of the payment transaction
func (r *PayResult) Digest() string {
	if r == nil || r.Payment == nil {
		return ""
	}
	return r.Payment.Primary.Digest()
}

// Warnings returns the non-fatal problems that followed the committed payment
func (r *PayResult) Warnings() []error {
	var warnings []error
	if r.Payment != nil && r.Payment.Warning != nil {
		warnings = append(warnings, r.Payment.Warning)
	}
	if r.HistoryWarning != nil {
		warnings = append(warnings, r.HistoryWarning)
	}
	return warnings
}

// IssuePayment creates a payment request on the active account
func (s *Service) IssuePayment(ctx context.Context, req IssueRequest) (*orchestrator.Result, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, req.Amount)
	}
	if req.Expiration < 0 {
		return nil, fmt.Errorf("expiration must not be negative: %v", req.Expiration)
	}
	coinType := req.CoinType
	if coinType == "" {
		coinType = coins.SUI
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%s:%s:%s:%s", opIssuePayment, client.AccountID(), coinType, req.Amount, req.Description)
	if _, err := s.guard.Begin(key); err != nil {
		return nil, err
	}
	defer s.guard.Finish(key)

	result, err := s.orch.Submit(ctx, opIssuePayment, func(ctx context.Context) (*ledger.Transaction, error) {
		return client.IssuePayment(ctx, ledger.IssuePaymentRequest{
			Amount:      req.Amount,
			CoinType:    coinType,
			Description: req.Description,
			Expiration:  req.Expiration,
		})
	})
	if err != nil {
		return result, err
	}

	s.session.TriggerRefresh()
	return result, nil
}

// Pay pays the intent and then the optional tip. A tip failure does not fail
// the payment; it is reported in the result. The committed payment is
// written to history exactly once.
func (s *Service) Pay(ctx context.Context, req PayRequest) (*PayResult, error) {
	if req.Tip != nil && req.Tip.Sign() < 0 {
		return nil, fmt.Errorf("%w: tip %v", ErrInvalidAmount, req.Tip)
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	intent, err := s.lookupIntent(ctx, client, req.IntentKey)
	if err != nil {
		return nil, err
	}
	if intent.Kind != models.KindPay {
		return nil, fmt.Errorf("intent %s is a %s intent: %w", intent.Key, intent.Kind, ErrWrongIntentKind)
	}
	if err := s.checkActionable(*intent); err != nil {
		return nil, err
	}
	if intent.Amount == nil || intent.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: intent %s amount %s", ErrInvalidAmount, intent.Key, intent.AmountString())
	}

	// reject before any write when the payment alone cannot be covered
	if _, err := s.spendable(ctx, client, intent.CoinType, intent.Amount); err != nil {
		return nil, err
	}

	payee := intent.Issuer
	if payee == "" {
		payee = intent.Creator
	}

	key := opMakePayment + ":" + intent.Key
	if _, err := s.guard.Begin(key); err != nil {
		return nil, err
	}
	defer s.guard.Finish(key)

	primary := orchestrator.Step{
		Operation: opMakePayment,
		Build: func(ctx context.Context) (*ledger.Transaction, error) {
			ids, err := s.spendable(ctx, client, intent.CoinType, intent.Amount)
			if err != nil {
				return nil, err
			}
			return client.MakePayment(ctx, ledger.MakePaymentRequest{
				IntentKey:     intent.Key,
				Issuer:        payee,
				Amount:        intent.Amount,
				CoinType:      intent.CoinType,
				CoinObjectIDs: ids,
			})
		},
	}

	tip := orchestrator.Step{Operation: opTip}
	if req.Tip != nil && req.Tip.Sign() > 0 {
		tip.Build = func(ctx context.Context) (*ledger.Transaction, error) {
			// the payment consumed coin objects, select from the current set
			ids, err := s.spendable(ctx, client, intent.CoinType, req.Tip)
			if err != nil {
				return nil, err
			}
			return client.Transfer(ctx, ledger.TransferRequest{
				Recipient:     payee,
				Amount:        req.Tip,
				CoinType:      intent.CoinType,
				CoinObjectIDs: ids,
			})
		}
	}

	payment, err := s.orch.PayWithTip(ctx, primary, tip)
	if err != nil {
		return &PayResult{Payment: payment}, err
	}

	record := models.HistoryRecord{
		PaymentID: intent.Key,
		Amount:    intent.AmountString(),
		Payer:     client.Address(),
		Payee:     payee,
		CoinType:  intent.CoinType,
		TxHash:    payment.Primary.Digest(),
		CreatedAt: s.now().UTC(),
	}
	if payment.Tip != nil && payment.Warning == nil {
		record.Tip = req.Tip.String()
	}

	result := &PayResult{Payment: payment, Record: &record}
	result.HistoryWarning = s.recordHistory(ctx, record)

	s.session.TriggerRefresh()
	return result, nil
}

func (s *Service) recordHistory(ctx context.Context, record models.HistoryRecord) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Record(ctx, record); err != nil {
		s.logger.ErrorWithScope(logger.Dashboard, "Payment %s committed in %s but history write failed: %v",
			record.PaymentID, record.TxHash, err)
		return err
	}
	return nil
}
