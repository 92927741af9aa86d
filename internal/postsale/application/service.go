package application

import (
	"context"
	"log/slog"

	"github.com/trendmart/payments/internal/postsale/domain"
	"github.com/trendmart/payments/pkg/tracing"
)

// Service runs the cancellation and return workflows. The two kinds share one
// machine: create while eligible, wait for the admin, resolve exactly once.
type Service struct {
	log      *slog.Logger
	requests RequestRepository
	orders   OrderReader
	attempts AttemptFinder
	gw       RefundGateway
}

func NewService(log *slog.Logger, requests RequestRepository, orders OrderReader, attempts AttemptFinder, gw RefundGateway) *Service {
	return &Service{log: log, requests: requests, orders: orders, attempts: attempts, gw: gw}
}

// Create opens a post-sale request against the order's current state. The
// one-open-request-per-kind rule is enforced by the repository.
func (s *Service) Create(ctx context.Context, kind domain.RequestKind, orderNumber, reason, note string) (domain.Request, error) {
	o, err := s.orders.Get(ctx, orderNumber)
	if err != nil {
		return domain.Request{}, err
	}

	req, err := domain.NewRequest(kind, o, reason, note)
	if err != nil {
		return domain.Request{}, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return domain.Request{}, err
	}

	s.log.Info("post-sale request opened", "request_id", req.ID, "kind", req.Kind, "order_number", orderNumber, "reason", reason)
	return req, nil
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Request domain.Request
	// AlreadyResolved means a prior decision stands and this call changed
	// nothing.
	AlreadyResolved bool
}

// Resolve applies an admin decision. Approval moves the order and enqueues
// the customer notification (and, for returns, the restock instruction) in
// the same transaction; the gateway refund runs after commit, and a refund
// failure leaves the approval standing with the request flagged for retry.
func (s *Service) Resolve(ctx context.Context, requestID string, decision domain.Decision, adminNote, actor string) (Resolution, error) {
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		return Resolution{}, domain.ErrUnknownDecision
	}

	res, err := s.requests.Resolve(ctx, ResolveParams{
		RequestID:   requestID,
		Approve:     decision == domain.DecisionApprove,
		AdminNote:   adminNote,
		Actor:       actor,
		Traceparent: tracing.Traceparent(ctx),
	})
	if err != nil {
		return Resolution{}, err
	}
	if !res.Applied {
		s.log.Info("repeat resolve ignored", "request_id", requestID, "status", res.Request.Status)
		return Resolution{Request: res.Request, AlreadyResolved: true}, nil
	}

	s.log.Info("post-sale request resolved",
		"request_id", requestID, "kind", res.Request.Kind, "status", res.Request.Status,
		"order_number", res.Request.OrderNumber, "actor", actor)

	if res.Request.Status == domain.StatusApproved {
		s.refund(ctx, &res.Request)
	}
	return Resolution{Request: res.Request}, nil
}

// refund issues the gateway refund for an approved request. Failure here is
// not a failure of the approval: the order has already moved, so the request
// is flagged refund-pending and handed to the operators.
func (s *Service) refund(ctx context.Context, req *domain.Request) {
	attempt, err := s.attempts.SuccessfulAttempt(ctx, req.OrderNumber)
	if err == nil {
		err = s.gw.Refund(ctx, attempt.GatewayAttemptID, req.RefundCents)
	}
	if err == nil {
		s.log.Info("refund issued", "request_id", req.ID, "order_number", req.OrderNumber, "amount_cents", req.RefundCents)
		return
	}

	s.log.Error("refund failed, flagging for manual retry", "request_id", req.ID, "order_number", req.OrderNumber, "err", err)
	if markErr := s.requests.MarkRefundPending(ctx, req.ID); markErr != nil {
		s.log.Error("could not flag refund-pending", "request_id", req.ID, "err", markErr)
		return
	}
	req.RefundPending = true
}

// ListPending feeds the admin queue.
func (s *Service) ListPending(ctx context.Context) ([]domain.Request, error) {
	return s.requests.ListPending(ctx)
}

// Get returns one request, for the admin detail view.
func (s *Service) Get(ctx context.Context, id string) (domain.Request, error) {
	return s.requests.Get(ctx, id)
}
