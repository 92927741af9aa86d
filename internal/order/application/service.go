// Package application holds the order lifecycle manager, the only sanctioned
// entry point for fulfillment-axis status changes.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trendmart/payments/internal/notification"
	"github.com/trendmart/payments/internal/order/domain"
	"github.com/trendmart/payments/pkg/tracing"
)

type Service struct {
	log  *slog.Logger
	repo OrderRepository
}

func NewService(log *slog.Logger, repo OrderRepository) *Service {
	return &Service{log: log, repo: repo}
}

// Transition moves an order along the fulfillment axis. Illegal edges and
// illegal (status, paymentStatus) pairs are rejected without a write.
// Cancelled/refunded targets are refused here outright: those states are
// reachable only through an approved post-sale request.
func (s *Service) Transition(ctx context.Context, number string, target domain.Status, actor string) error {
	if domain.RequiresApproval(target) {
		return fmt.Errorf("%w: %s requires an approved post-sale request", domain.ErrIllegalTransition, target)
	}

	o, err := s.repo.Get(ctx, number)
	if err != nil {
		return err
	}
	if !domain.CanTransition(o.Status, target) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, o.Status, target)
	}
	if !domain.PairLegal(target, o.PaymentStatus) {
		return fmt.Errorf("%w: %s while payment is %s", domain.ErrIllegalTransition, target, o.PaymentStatus)
	}

	msg := transitionMessage(o, target)
	if err := s.repo.TransitionWithOutbox(ctx, number, o.Status, target, msg, tracing.Traceparent(ctx)); err != nil {
		return err
	}

	s.log.Info("order transitioned", "order_number", number, "from", o.Status, "to", target, "actor", actor)
	return nil
}

// transitionMessage returns the customer notification for the target status,
// or nil when the transition is not customer-visible.
func transitionMessage(o domain.Order, target domain.Status) *notification.Message {
	var typ string
	switch target {
	case domain.StatusShipped:
		typ = notification.TypeOrderShipped
	case domain.StatusDelivered:
		typ = notification.TypeOrderDelivered
	default:
		return nil
	}
	return &notification.Message{
		Type:          typ,
		OrderNumber:   o.Number,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		AmountCents:   o.TotalCents,
	}
}
