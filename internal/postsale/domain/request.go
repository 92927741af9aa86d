package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	orderdomain "github.com/trendmart/payments/internal/order/domain"
)

type RequestKind string

const (
	KindCancellation RequestKind = "cancellation"
	KindReturn       RequestKind = "return"
)

type RequestStatus string

const (
	StatusPendingApproval RequestStatus = "pending_admin_approval"
	StatusApproved        RequestStatus = "approved"
	StatusRejected        RequestStatus = "rejected"
)

// Terminal reports whether the request has been decided. Resolve is a one-way
// door; a terminal request never changes again.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

var (
	ErrIneligibleOrder   = errors.New("order is not eligible for this request")
	ErrOpenRequestExists = errors.New("an open request of this kind already exists for the order")
	ErrRequestNotFound   = errors.New("post-sale request not found")
	ErrUnknownReason     = errors.New("unknown request reason")
	ErrUnknownDecision   = errors.New("unknown decision")
)

// Reason catalogs per kind. Free-text goes in the note; the reason itself is
// an enum so operators can aggregate.
var cancellationReasons = map[string]bool{
	"ordered_by_mistake": true,
	"found_cheaper":      true,
	"delivery_too_slow":  true,
	"other":              true,
}

var returnReasons = map[string]bool{
	"damaged":          true,
	"wrong_item":       true,
	"not_as_described": true,
	"no_longer_needed": true,
	"other":            true,
}

func ValidReason(kind RequestKind, reason string) bool {
	switch kind {
	case KindCancellation:
		return cancellationReasons[reason]
	case KindReturn:
		return returnReasons[reason]
	}
	return false
}

// Request is one customer-initiated cancellation or return, awaiting an admin
// decision. RefundCents is fixed at creation from the order total.
type Request struct {
	ID          string
	Kind        RequestKind
	OrderNumber string
	Reason      string
	Note        string
	RefundCents int64
	Status      RequestStatus
	AdminNote   string
	ResolvedBy  string
	// RefundPending marks an approved request whose gateway refund failed;
	// the approval stands and operators retry the refund.
	RefundPending bool
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// NewRequest validates eligibility against the order's current state and
// builds a pending request. The database's partial unique index enforces the
// one-open-request-per-kind rule; this only checks the order itself.
func NewRequest(kind RequestKind, o orderdomain.Order, reason, note string) (Request, error) {
	if !ValidReason(kind, reason) {
		return Request{}, ErrUnknownReason
	}
	if err := CheckEligibility(kind, o); err != nil {
		return Request{}, err
	}
	return Request{
		ID:          uuid.NewString(),
		Kind:        kind,
		OrderNumber: o.Number,
		Reason:      reason,
		Note:        note,
		RefundCents: o.TotalCents,
		Status:      StatusPendingApproval,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// CheckEligibility: a cancellation stops a paid order that has not shipped; a
// return brings back goods the customer has received. Re-checked at resolve
// time, since the order may have moved while the request waited.
func CheckEligibility(kind RequestKind, o orderdomain.Order) error {
	switch kind {
	case KindCancellation:
		if o.PaymentStatus != orderdomain.PaymentPaid {
			return ErrIneligibleOrder
		}
		if o.Status != orderdomain.StatusProcessing {
			return ErrIneligibleOrder
		}
	case KindReturn:
		if o.Status != orderdomain.StatusDelivered {
			return ErrIneligibleOrder
		}
	default:
		return ErrIneligibleOrder
	}
	return nil
}

// TargetOrderStatus is where an approved request moves the order.
func (k RequestKind) TargetOrderStatus() orderdomain.Status {
	if k == KindCancellation {
		return orderdomain.StatusCancelled
	}
	return orderdomain.StatusRefunded
}
