package orchestrator

import (
	"context"

	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/metrics"
)

// Step is one transaction of a multi-transaction action
type Step struct {
	Operation string
	Build     BuildFunc
}

// PaymentResult holds the outcome of a payment and its optional tip
type PaymentResult struct {
	Primary *Result
	Tip     *Result
	// Warning is set when the tip failed after the payment committed
	Warning *SecondaryTransferError
}

// PayWithTip submits primary and, only once it succeeded, the tip. The tip's
// Build must fetch its own coin objects since the primary consumed some.
// A nil tip Build skips the tip. The returned error reflects the primary only.
func (o *Orchestrator) PayWithTip(ctx context.Context, primary, tip Step) (*PaymentResult, error) {
	res := &PaymentResult{}

	primaryResult, err := o.Submit(ctx, primary.Operation, primary.Build)
	res.Primary = primaryResult
	if err != nil {
		return res, err
	}

	if tip.Build == nil {
		return res, nil
	}

	tipResult, err := o.Submit(ctx, tip.Operation, tip.Build)
	res.Tip = tipResult
	if err != nil {
		metrics.TipFailures.Inc()
		o.logger.ErrorWithScope(logger.Tx, "Tip after payment %s failed: %v", primaryResult.Digest(), err)
		res.Warning = &SecondaryTransferError{PrimaryDigest: primaryResult.Digest(), Err: err}
	}
	return res, nil
}
