package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trendmart/payments/internal/notification"
	orderdomain "github.com/trendmart/payments/internal/order/domain"
	"github.com/trendmart/payments/internal/payment/domain"
)

// fakeAttemptRepo mimics the postgres repository's conditional-update
// semantics behind a mutex, so CAS behavior can be exercised concurrently.
type fakeAttemptRepo struct {
	mu            sync.Mutex
	orders        map[string]orderdomain.Order
	attempts      map[string]domain.Attempt
	notifications []string
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{
		orders:   map[string]orderdomain.Order{},
		attempts: map[string]domain.Attempt{},
	}
}

func (r *fakeAttemptRepo) CreateWithOrder(_ context.Context, o orderdomain.Order, a domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.Number]; ok {
		return fmt.Errorf("duplicate order %s", o.Number)
	}
	r.orders[o.Number] = o
	r.attempts[a.GatewayAttemptID] = a
	return nil
}

func (r *fakeAttemptRepo) CreateForOrder(_ context.Context, a domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[a.OrderNumber]; !ok {
		return fmt.Errorf("order %s not found", a.OrderNumber)
	}
	for id, open := range r.attempts {
		if open.OrderNumber == a.OrderNumber && open.Status.NonTerminal() {
			open.Status = domain.AttemptExpired
			r.attempts[id] = open
		}
	}
	r.attempts[a.GatewayAttemptID] = a
	return nil
}

func (r *fakeAttemptRepo) MarkAwaitingAuthentication(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if a.Status != domain.AttemptInitiated {
		return fmt.Errorf("attempt %s is %s, not initiated", id, a.Status)
	}
	a.Status = domain.AttemptAwaitingAuth
	a.UpdatedAt = time.Now().UTC()
	r.attempts[id] = a
	return nil
}

func (r *fakeAttemptRepo) Get(_ context.Context, id string) (domain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (r *fakeAttemptRepo) Finalize(_ context.Context, p FinalizeParams) (FinalizeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[p.GatewayAttemptID]
	if !ok {
		return FinalizeResult{}, domain.ErrAttemptNotFound
	}
	if a.Status == domain.AttemptExpired {
		return FinalizeResult{}, domain.ErrAttemptExpired
	}
	if !a.Status.NonTerminal() {
		return FinalizeResult{Won: false, Attempt: a}, nil
	}

	now := time.Now().UTC()
	a.Status = p.Target
	a.ResultCode = p.ResultCode
	a.UpdatedAt = now
	a.SettledAt = &now
	r.attempts[p.GatewayAttemptID] = a

	if p.MarkOrderPaid {
		o := r.orders[a.OrderNumber]
		o.PaymentStatus = orderdomain.PaymentPaid
		o.PaidAt = &now
		if o.Status == orderdomain.StatusPending {
			o.Status = orderdomain.StatusProcessing
		}
		r.orders[a.OrderNumber] = o
		r.notifications = append(r.notifications, notification.TypePaymentConfirmed)
	}
	return FinalizeResult{Won: true, Attempt: a}, nil
}

func (r *fakeAttemptRepo) ExpireStale(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var swept []string
	for id, a := range r.attempts {
		if a.Status.NonTerminal() && a.UpdatedAt.Before(cutoff) {
			a.Status = domain.AttemptExpired
			a.UpdatedAt = time.Now().UTC()
			r.attempts[id] = a
			swept = append(swept, id)
		}
	}
	return swept, nil
}

func (r *fakeAttemptRepo) ListPendingReview(_ context.Context) ([]domain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attempt
	for _, a := range r.attempts {
		if a.Status == domain.AttemptPendingReview {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) order(number string) orderdomain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[number]
}

// fakeAttemptRepo also serves as the OrderReader port in tests.
func (r *fakeAttemptRepo) GetOrder(ctx context.Context, number string) (orderdomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[number]
	if !ok {
		return orderdomain.Order{}, fmt.Errorf("order %s not found", number)
	}
	return o, nil
}

type orderReaderFunc func(ctx context.Context, number string) (orderdomain.Order, error)

func (f orderReaderFunc) Get(ctx context.Context, number string) (orderdomain.Order, error) {
	return f(ctx, number)
}

type fakeGateway struct {
	quote     func(ctx context.Context, bin string, amount decimal.Decimal) ([]domain.InstallmentPlan, error)
	authorize func(ctx context.Context, req domain.AuthorizationRequest) (domain.GatewayAuthorization, error)
	result    func(ctx context.Context, id string) (domain.Outcome, error)
	refund    func(ctx context.Context, id string, amountCents int64) error
}

func (g *fakeGateway) Quote(ctx context.Context, bin string, amount decimal.Decimal) ([]domain.InstallmentPlan, error) {
	return g.quote(ctx, bin, amount)
}

func (g *fakeGateway) Authorize(ctx context.Context, req domain.AuthorizationRequest) (domain.GatewayAuthorization, error) {
	return g.authorize(ctx, req)
}

func (g *fakeGateway) Result(ctx context.Context, id string) (domain.Outcome, error) {
	return g.result(ctx, id)
}

func (g *fakeGateway) Refund(ctx context.Context, id string, amountCents int64) error {
	return g.refund(ctx, id, amountCents)
}
