package application

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/trendmart/payments/internal/order/domain"
	"github.com/trendmart/payments/internal/payment/domain"
)

var testCard = domain.CardDetails{
	HolderName:  "Ada Lovelace",
	Number:      "4543601234567890",
	ExpireMonth: "12",
	ExpireYear:  "2028",
	CVC:         "123",
}

func testDraft() Draft {
	return Draft{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		Items:         []orderdomain.LineItem{{ProductID: "p1", Quantity: 1, UnitPriceCents: 199900}},
		Currency:      "USD",
	}
}

func newInitiator(repo *fakeAttemptRepo, gw *fakeGateway) *Initiator {
	rec := NewReconciler(slog.Default(), repo, gw)
	return NewInitiator(slog.Default(), repo, orderReaderFunc(repo.GetOrder), gw, rec)
}

func TestInitiateImmediateSettlement(t *testing.T) {
	repo := newFakeAttemptRepo()
	gw := &fakeGateway{
		authorize: func(_ context.Context, req domain.AuthorizationRequest) (domain.GatewayAuthorization, error) {
			assert.Equal(t, int64(199900), req.AmountCents)
			assert.Equal(t, "Ada Lovelace", req.Buyer.Name)
			return domain.GatewayAuthorization{Outcome: domain.Outcome{Kind: domain.OutcomeSuccess, ResultCode: "00"}}, nil
		},
	}

	res, err := newInitiator(repo, gw).Initiate(context.Background(), testDraft(), testCard, 1)
	require.NoError(t, err)
	assert.False(t, res.RequiresAuthentication)
	require.NotNil(t, res.Final)
	assert.True(t, res.Final.Succeeded())
	assert.False(t, res.Final.AlreadySettled)

	o := repo.order(res.OrderNumber)
	assert.Equal(t, orderdomain.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, orderdomain.StatusProcessing, o.Status)
	assert.Len(t, repo.notifications, 1)
}

func TestInitiateRequiresAuthentication(t *testing.T) {
	repo := newFakeAttemptRepo()
	form := []byte(`<form action="https://bank.test/3ds"></form>`)
	gw := &fakeGateway{
		authorize: func(context.Context, domain.AuthorizationRequest) (domain.GatewayAuthorization, error) {
			return domain.GatewayAuthorization{
				RequiresAuthentication: true,
				Form:                   domain.OpaqueForm{ContentType: "text/html; charset=utf-8", Body: form},
			}, nil
		},
	}

	res, err := newInitiator(repo, gw).Initiate(context.Background(), testDraft(), testCard, 3)
	require.NoError(t, err)
	assert.True(t, res.RequiresAuthentication)
	assert.Equal(t, form, res.Form.Body)
	require.NotEmpty(t, res.GatewayAttemptID)

	a, err := repo.Get(context.Background(), res.GatewayAttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptAwaitingAuth, a.Status)
	assert.Equal(t, 3, a.Installments)
	assert.Equal(t, "454360", a.CardBIN)

	// order is committed and pending before any settlement signal
	o := repo.order(res.OrderNumber)
	assert.Equal(t, orderdomain.StatusPending, o.Status)
	assert.Equal(t, orderdomain.PaymentUnpaid, o.PaymentStatus)
}

func TestInitiateTransportFailureLeavesAttemptInitiated(t *testing.T) {
	repo := newFakeAttemptRepo()
	gw := &fakeGateway{
		authorize: func(context.Context, domain.AuthorizationRequest) (domain.GatewayAuthorization, error) {
			return domain.GatewayAuthorization{}, domain.ErrGatewayUnavailable
		},
	}

	res, err := newInitiator(repo, gw).Initiate(context.Background(), testDraft(), testCard, 1)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	// durable record exists: one pending order, one INITIATED attempt
	require.Len(t, repo.orders, 1)
	require.Len(t, repo.attempts, 1)
	for _, a := range repo.attempts {
		assert.Equal(t, domain.AttemptInitiated, a.Status)
	}
	for _, o := range repo.orders {
		assert.Equal(t, orderdomain.StatusPending, o.Status)
		// the caller retries against this order, so its identity rides
		// along with the error
		assert.Equal(t, o.Number, res.OrderNumber)
	}
	assert.NotEmpty(t, res.GatewayAttemptID)
}

func TestRetryCreatesNewAttemptNotDuplicateOrder(t *testing.T) {
	repo := newFakeAttemptRepo()
	calls := 0
	gw := &fakeGateway{
		authorize: func(context.Context, domain.AuthorizationRequest) (domain.GatewayAuthorization, error) {
			calls++
			if calls == 1 {
				return domain.GatewayAuthorization{}, domain.ErrGatewayUnavailable
			}
			return domain.GatewayAuthorization{Outcome: domain.Outcome{Kind: domain.OutcomeSuccess, ResultCode: "00"}}, nil
		},
	}
	init := newInitiator(repo, gw)

	_, err := init.Initiate(context.Background(), testDraft(), testCard, 1)
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	var orderNumber, firstAttemptID string
	for n := range repo.orders {
		orderNumber = n
	}
	for id := range repo.attempts {
		firstAttemptID = id
	}

	retry := testDraft()
	retry.OrderNumber = orderNumber
	res, err := init.Initiate(context.Background(), retry, testCard, 1)
	require.NoError(t, err)
	require.NotNil(t, res.Final)
	assert.True(t, res.Final.Succeeded())
	assert.Equal(t, orderNumber, res.OrderNumber)

	assert.Len(t, repo.orders, 1, "retry must not create a second order")
	assert.Len(t, repo.attempts, 2, "retry must create a fresh attempt")
	assert.NotEqual(t, firstAttemptID, res.GatewayAttemptID)

	first, err := repo.Get(context.Background(), firstAttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptExpired, first.Status, "superseded attempt is closed")
}

func TestInitiateRetryRejectsSettledOrder(t *testing.T) {
	repo := newFakeAttemptRepo()
	gw := &fakeGateway{
		authorize: func(context.Context, domain.AuthorizationRequest) (domain.GatewayAuthorization, error) {
			return domain.GatewayAuthorization{Outcome: domain.Outcome{Kind: domain.OutcomeSuccess, ResultCode: "00"}}, nil
		},
	}
	init := newInitiator(repo, gw)

	res, err := init.Initiate(context.Background(), testDraft(), testCard, 1)
	require.NoError(t, err)

	retry := testDraft()
	retry.OrderNumber = res.OrderNumber
	_, err = init.Initiate(context.Background(), retry, testCard, 1)
	assert.Error(t, err)
	assert.Len(t, repo.attempts, 1)
}
