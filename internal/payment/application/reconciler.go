package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/trendmart/payments/internal/payment/domain"
	"github.com/trendmart/payments/pkg/tracing"
)

// Reconciler is the single writer of payment state. Every completion signal
// for an attempt, whether from the browser redirect, the server-to-server
// callback, or a manual admin re-check, funnels through Finalize.
type Reconciler struct {
	log      *slog.Logger
	attempts AttemptRepository
	gw       Gateway
}

func NewReconciler(log *slog.Logger, attempts AttemptRepository, gw Gateway) *Reconciler {
	return &Reconciler{log: log, attempts: attempts, gw: gw}
}

// Finalize settles an attempt exactly once. Concurrent callers race on a
// database compare-and-set; the loser reads the committed row and returns
// the same outcome without re-running side effects.
func (r *Reconciler) Finalize(ctx context.Context, gatewayAttemptID string, outcome domain.Outcome) (domain.FinalOutcome, error) {
	res, err := r.attempts.Finalize(ctx, FinalizeParams{
		GatewayAttemptID: gatewayAttemptID,
		Target:           outcome.TargetStatus(),
		ResultCode:       outcome.ResultCode,
		MarkOrderPaid:    outcome.Kind == domain.OutcomeSuccess,
		Traceparent:      tracing.Traceparent(ctx),
	})
	if errors.Is(err, domain.ErrAttemptExpired) {
		r.log.Warn("late finalization rejected for expired attempt", "gateway_attempt_id", gatewayAttemptID, "result_code", outcome.ResultCode)
		return domain.FinalOutcome{}, err
	}
	if err != nil {
		return domain.FinalOutcome{}, err
	}

	final := domain.FinalOutcome{
		Status:         res.Attempt.Status,
		OrderNumber:    res.Attempt.OrderNumber,
		ResultCode:     res.Attempt.ResultCode,
		AlreadySettled: !res.Won,
	}
	if final.Status == domain.AttemptSettledFailure {
		final.Reason = outcome.Reason
		if final.Reason == "" {
			final.Reason = "payment was declined by your bank"
		}
	}

	if res.Won {
		r.log.Info("attempt finalized", "gateway_attempt_id", gatewayAttemptID, "status", final.Status, "order_number", final.OrderNumber)
	} else {
		r.log.Info("duplicate finalize short-circuited", "gateway_attempt_id", gatewayAttemptID, "status", final.Status)
	}
	return final, nil
}

// Outcome returns the current result for an attempt without writing
// anything. AlreadySettled reports whether the attempt is terminal.
func (r *Reconciler) Outcome(ctx context.Context, gatewayAttemptID string) (domain.FinalOutcome, error) {
	a, err := r.attempts.Get(ctx, gatewayAttemptID)
	if err != nil {
		return domain.FinalOutcome{}, err
	}
	return domain.FinalOutcome{
		Status:         a.Status,
		OrderNumber:    a.OrderNumber,
		ResultCode:     a.ResultCode,
		AlreadySettled: !a.Status.NonTerminal(),
	}, nil
}

// Refresh re-checks an attempt against the gateway and funnels the current
// result into Finalize. This is the manual admin re-check entry point.
func (r *Reconciler) Refresh(ctx context.Context, gatewayAttemptID string) (domain.FinalOutcome, error) {
	outcome, err := r.gw.Result(ctx, gatewayAttemptID)
	if err != nil {
		return domain.FinalOutcome{}, err
	}
	return r.Finalize(ctx, gatewayAttemptID, outcome)
}

// PendingReview lists attempts held for manual review, for the operator
// surface.
func (r *Reconciler) PendingReview(ctx context.Context) ([]domain.Attempt, error) {
	return r.attempts.ListPendingReview(ctx)
}
