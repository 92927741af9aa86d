package application

import (
	"context"

	orderdomain "github.com/trendmart/payments/internal/order/domain"
	paymentdomain "github.com/trendmart/payments/internal/payment/domain"
	"github.com/trendmart/payments/internal/postsale/domain"
)

// ResolveParams carries one admin decision. The repository applies it as a
// terminal compare-and-set together with the order move and the notification
// and restock outbox rows, all in one transaction.
type ResolveParams struct {
	RequestID   string
	Approve     bool
	AdminNote   string
	Actor       string
	Traceparent string
}

// ResolveResult reports whether this call decided the request. A repeat
// resolve finds the request already terminal and returns the stored row with
// Applied false.
type ResolveResult struct {
	Applied bool
	Request domain.Request
	Order   orderdomain.Order
}

type RequestRepository interface {
	// Create inserts a pending request, returning domain.ErrOpenRequestExists
	// when an open request of the same kind already exists for the order.
	Create(ctx context.Context, req domain.Request) error
	Get(ctx context.Context, id string) (domain.Request, error)
	ListPending(ctx context.Context) ([]domain.Request, error)
	Resolve(ctx context.Context, p ResolveParams) (ResolveResult, error)
	// MarkRefundPending flags an approved request whose gateway refund failed.
	MarkRefundPending(ctx context.Context, id string) error
}

type OrderReader interface {
	Get(ctx context.Context, number string) (orderdomain.Order, error)
}

// RefundGateway is the slice of the payment gateway the post-sale workflow
// needs: issuing a refund against a settled attempt.
type RefundGateway interface {
	Refund(ctx context.Context, gatewayAttemptID string, amountCents int64) error
}

// AttemptFinder locates the settled attempt to refund against.
type AttemptFinder interface {
	SuccessfulAttempt(ctx context.Context, orderNumber string) (paymentdomain.Attempt, error)
}
