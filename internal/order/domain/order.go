package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var (
	ErrIllegalTransition = errors.New("illegal order transition")
	ErrEmptyOrder        = errors.New("order has no line items")
	ErrNegativeAmount    = errors.New("negative amount")
)

// fulfillmentEdges is the full set of legal status transitions. Cancelled
// and refunded edges exist here but are reachable only through the post-sale
// workflow; Transition refuses them for direct staff edits.
var fulfillmentEdges = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
}

func CanTransition(from, to Status) bool {
	for _, next := range fulfillmentEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether the target status may only be reached via
// an approved post-sale request, never a direct staff edit.
func RequiresApproval(to Status) bool {
	return to == StatusCancelled || to == StatusRefunded
}

// legalPairs encodes which (status, paymentStatus) combinations an order may
// occupy. The two axes are independent fields but not independent facts: an
// order is never shipped unpaid.
var legalPairs = map[Status][]PaymentStatus{
	StatusPending:    {PaymentUnpaid},
	StatusProcessing: {PaymentPaid},
	StatusShipped:    {PaymentPaid},
	StatusDelivered:  {PaymentPaid},
	StatusCancelled:  {PaymentUnpaid, PaymentRefunded},
	StatusRefunded:   {PaymentRefunded},
}

func PairLegal(s Status, p PaymentStatus) bool {
	for _, ok := range legalPairs[s] {
		if ok == p {
			return true
		}
	}
	return false
}

type LineItem struct {
	ProductID      string
	Quantity       int
	UnitPriceCents int64
}

type Order struct {
	Number        string
	CustomerName  string
	CustomerEmail string
	Items         []LineItem
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
}

// NewOrder builds a pending, unpaid order. The total is computed here, once;
// nothing recomputes it after settlement.
func NewOrder(number, customerName, customerEmail string, items []LineItem, discountCents, shippingCents, taxCents int64) (Order, error) {
	if number == "" {
		return Order{}, errors.New("order number required")
	}
	if len(items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	if discountCents < 0 || shippingCents < 0 || taxCents < 0 {
		return Order{}, ErrNegativeAmount
	}

	// One line per product: a draft listing the same SKU twice is merged
	// here, before the per-product storage constraint can see it.
	merged := make([]LineItem, 0, len(items))
	index := make(map[string]int, len(items))
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("item %s: quantity must be positive", item.ProductID)
		}
		if item.UnitPriceCents < 0 {
			return Order{}, ErrNegativeAmount
		}
		subtotal += int64(item.Quantity) * item.UnitPriceCents
		if i, ok := index[item.ProductID]; ok {
			if merged[i].UnitPriceCents != item.UnitPriceCents {
				return Order{}, fmt.Errorf("item %s: conflicting unit prices", item.ProductID)
			}
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	items = merged

	total := subtotal - discountCents + shippingCents + taxCents
	if total <= 0 {
		return Order{}, fmt.Errorf("order total must be positive, got %d cents", total)
	}

	now := time.Now().UTC()
	return Order{
		Number:        number,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		Items:         items,
		SubtotalCents: subtotal,
		DiscountCents: discountCents,
		ShippingCents: shippingCents,
		TaxCents:      taxCents,
		TotalCents:    total,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		PaymentMethod: "card",
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
