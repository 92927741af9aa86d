package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	orderdomain "github.com/trendmart/payments/internal/order/domain"
	"github.com/trendmart/payments/internal/payment/domain"
)

type Gateway interface {
	Quote(ctx context.Context, bin string, amount decimal.Decimal) ([]domain.InstallmentPlan, error)
	Authorize(ctx context.Context, req domain.AuthorizationRequest) (domain.GatewayAuthorization, error)
	Result(ctx context.Context, gatewayAttemptID string) (domain.Outcome, error)
	Refund(ctx context.Context, gatewayAttemptID string, amountCents int64) error
}

// FinalizeParams carries one settlement write. The repository applies it as a
// compare-and-set: only a row still in a non-terminal state takes the write.
type FinalizeParams struct {
	GatewayAttemptID string
	Target           domain.AttemptStatus
	ResultCode       string
	// MarkOrderPaid moves the order to paid/processing and enqueues the
	// payment-confirmed notification, all inside the settlement transaction.
	MarkOrderPaid bool
	Traceparent   string
}

// FinalizeResult reports whether this caller won the CAS. Attempt is the
// committed row either way, so losers can return the original outcome.
type FinalizeResult struct {
	Won     bool
	Attempt domain.Attempt
}

type AttemptRepository interface {
	// CreateWithOrder persists the pending order and its INITIATED attempt in
	// one transaction, before any gateway call is made.
	CreateWithOrder(ctx context.Context, o orderdomain.Order, a domain.Attempt) error
	// CreateForOrder attaches a fresh attempt to an existing pending order,
	// expiring any non-terminal attempt it supersedes.
	CreateForOrder(ctx context.Context, a domain.Attempt) error
	MarkAwaitingAuthentication(ctx context.Context, gatewayAttemptID string) error
	Get(ctx context.Context, gatewayAttemptID string) (domain.Attempt, error)
	// Finalize returns domain.ErrAttemptExpired for swept attempts and
	// domain.ErrAttemptNotFound for unknown ids.
	Finalize(ctx context.Context, p FinalizeParams) (FinalizeResult, error)
	// ExpireStale moves non-terminal attempts older than the cutoff to
	// expired, returning the swept gateway attempt ids.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
	ListPendingReview(ctx context.Context) ([]domain.Attempt, error)
}

type OrderReader interface {
	Get(ctx context.Context, number string) (orderdomain.Order, error)
}
