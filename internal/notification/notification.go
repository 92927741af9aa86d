// Package notification defines the fixed catalog of customer messages the
// core may enqueue. Delivery belongs to the email collaborator consuming the
// notifications topic; the core only guarantees one outbox row per event.
package notification

import "encoding/json"

const (
	TypePaymentConfirmed     = "payment.confirmed"
	TypeOrderShipped         = "order.shipped"
	TypeOrderDelivered       = "order.delivered"
	TypeCancellationApproved = "cancellation.approved"
	TypeCancellationRejected = "cancellation.rejected"
	TypeReturnApproved       = "return.approved"
	TypeReturnRejected       = "return.rejected"
)

// ReturnAddress is included on return.approved so the customer knows where
// to ship the goods back.
type ReturnAddress struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type Message struct {
	Type          string         `json:"type"`
	OrderNumber   string         `json:"order_number"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	AmountCents   int64          `json:"amount_cents,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	ReturnAddress *ReturnAddress `json:"return_address,omitempty"`
}

func (m Message) Payload() ([]byte, error) {
	return json.Marshal(m)
}
