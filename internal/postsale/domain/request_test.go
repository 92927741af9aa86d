package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/trendmart/payments/internal/order/domain"
)

func paidProcessingOrder() orderdomain.Order {
	return orderdomain.Order{
		Number:        "ORD-1",
		Status:        orderdomain.StatusProcessing,
		PaymentStatus: orderdomain.PaymentPaid,
		TotalCents:    14900,
	}
}

func TestNewCancellationRequest(t *testing.T) {
	req, err := NewRequest(KindCancellation, paidProcessingOrder(), "ordered_by_mistake", "clicked twice")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, req.Status)
	assert.Equal(t, int64(14900), req.RefundCents)
	assert.NotEmpty(t, req.ID)
}

func TestCancellationRequiresPaidUnshippedOrder(t *testing.T) {
	cases := []struct {
		name    string
		status  orderdomain.Status
		payment orderdomain.PaymentStatus
	}{
		{"unpaid pending", orderdomain.StatusPending, orderdomain.PaymentUnpaid},
		{"already shipped", orderdomain.StatusShipped, orderdomain.PaymentPaid},
		{"already delivered", orderdomain.StatusDelivered, orderdomain.PaymentPaid},
		{"already cancelled", orderdomain.StatusCancelled, orderdomain.PaymentRefunded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := paidProcessingOrder()
			o.Status = tc.status
			o.PaymentStatus = tc.payment
			_, err := NewRequest(KindCancellation, o, "ordered_by_mistake", "")
			assert.ErrorIs(t, err, ErrIneligibleOrder)
		})
	}
}

func TestReturnRequiresDeliveredOrder(t *testing.T) {
	o := paidProcessingOrder()
	_, err := NewRequest(KindReturn, o, "damaged", "")
	assert.ErrorIs(t, err, ErrIneligibleOrder)

	o.Status = orderdomain.StatusDelivered
	req, err := NewRequest(KindReturn, o, "damaged", "box arrived crushed")
	require.NoError(t, err)
	assert.Equal(t, KindReturn, req.Kind)
}

func TestNewRequestRejectsUnknownReason(t *testing.T) {
	_, err := NewRequest(KindCancellation, paidProcessingOrder(), "damaged", "")
	assert.ErrorIs(t, err, ErrUnknownReason)
}

func TestTargetOrderStatus(t *testing.T) {
	assert.Equal(t, orderdomain.StatusCancelled, KindCancellation.TargetOrderStatus())
	assert.Equal(t, orderdomain.StatusRefunded, KindReturn.TargetOrderStatus())
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPendingApproval.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
}
