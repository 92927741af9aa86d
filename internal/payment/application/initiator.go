package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	orderdomain "github.com/trendmart/payments/internal/order/domain"
	"github.com/trendmart/payments/internal/payment/domain"
)

// Draft is what the checkout surface hands over when starting a payment.
// OrderNumber is empty on the first try; retries after a declined or failed
// attempt name the existing pending order so no duplicate is created.
type Draft struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	Items         []orderdomain.LineItem
	DiscountCents int64
	ShippingCents int64
	TaxCents      int64
	Currency      string
}

type Initiator struct {
	log        *slog.Logger
	attempts   AttemptRepository
	orders     OrderReader
	gw         Gateway
	reconciler *Reconciler
}

func NewInitiator(log *slog.Logger, attempts AttemptRepository, orders OrderReader, gw Gateway, reconciler *Reconciler) *Initiator {
	return &Initiator{log: log, attempts: attempts, orders: orders, gw: gw, reconciler: reconciler}
}

// Initiate starts one authorization try. The pending order and INITIATED
// attempt are committed before the gateway is called, so every gateway
// conversation has a durable local record to reconcile against.
func (s *Initiator) Initiate(ctx context.Context, draft Draft, card domain.CardDetails, installments int) (domain.AuthorizationResult, error) {
	o, attempt, err := s.prepare(ctx, draft, card, installments)
	if err != nil {
		return domain.AuthorizationResult{}, err
	}

	resp, err := s.gw.Authorize(ctx, domain.AuthorizationRequest{
		GatewayAttemptID: attempt.GatewayAttemptID,
		AmountCents:      o.TotalCents,
		Currency:         attempt.Currency,
		Installments:     attempt.Installments,
		Card:             card,
		Buyer:            domain.Buyer{Name: o.CustomerName, Email: o.CustomerEmail},
	})
	if err != nil {
		// The attempt stays INITIATED; the sweep will expire it. The pending
		// order's identity is returned with the error so the caller can
		// retry against it with a fresh attempt instead of drafting a
		// duplicate order.
		s.log.Warn("authorization call failed", "order_number", o.Number, "gateway_attempt_id", attempt.GatewayAttemptID, "err", err)
		return domain.AuthorizationResult{GatewayAttemptID: attempt.GatewayAttemptID, OrderNumber: o.Number}, err
	}

	if resp.RequiresAuthentication {
		if err := s.attempts.MarkAwaitingAuthentication(ctx, attempt.GatewayAttemptID); err != nil {
			return domain.AuthorizationResult{GatewayAttemptID: attempt.GatewayAttemptID, OrderNumber: o.Number}, err
		}
		s.log.Info("authentication required", "order_number", o.Number, "gateway_attempt_id", attempt.GatewayAttemptID)
		return domain.AuthorizationResult{
			RequiresAuthentication: true,
			Form:                   resp.Form,
			GatewayAttemptID:       attempt.GatewayAttemptID,
			OrderNumber:            o.Number,
		}, nil
	}

	final, err := s.reconciler.Finalize(ctx, attempt.GatewayAttemptID, resp.Outcome)
	if err != nil {
		return domain.AuthorizationResult{GatewayAttemptID: attempt.GatewayAttemptID, OrderNumber: o.Number}, err
	}
	return domain.AuthorizationResult{
		GatewayAttemptID: attempt.GatewayAttemptID,
		OrderNumber:      o.Number,
		Final:            &final,
	}, nil
}

func (s *Initiator) prepare(ctx context.Context, draft Draft, card domain.CardDetails, installments int) (orderdomain.Order, domain.Attempt, error) {
	if draft.OrderNumber != "" {
		o, err := s.orders.Get(ctx, draft.OrderNumber)
		if err != nil {
			return orderdomain.Order{}, domain.Attempt{}, err
		}
		if o.Status != orderdomain.StatusPending || o.PaymentStatus != orderdomain.PaymentUnpaid {
			return orderdomain.Order{}, domain.Attempt{}, fmt.Errorf("order %s is not awaiting payment", o.Number)
		}
		attempt, err := domain.NewAttempt(o.Number, o.TotalCents, draft.Currency, card.Number, installments)
		if err != nil {
			return orderdomain.Order{}, domain.Attempt{}, err
		}
		if err := s.attempts.CreateForOrder(ctx, attempt); err != nil {
			return orderdomain.Order{}, domain.Attempt{}, err
		}
		return o, attempt, nil
	}

	o, err := orderdomain.NewOrder(uuid.NewString(), draft.CustomerName, draft.CustomerEmail,
		draft.Items, draft.DiscountCents, draft.ShippingCents, draft.TaxCents)
	if err != nil {
		return orderdomain.Order{}, domain.Attempt{}, err
	}
	attempt, err := domain.NewAttempt(o.Number, o.TotalCents, draft.Currency, card.Number, installments)
	if err != nil {
		return orderdomain.Order{}, domain.Attempt{}, err
	}
	if err := s.attempts.CreateWithOrder(ctx, o, attempt); err != nil {
		return orderdomain.Order{}, domain.Attempt{}, err
	}
	return o, attempt, nil
}
