package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AttemptStatus string

const (
	AttemptInitiated      AttemptStatus = "initiated"
	AttemptAwaitingAuth   AttemptStatus = "awaiting_authentication"
	AttemptSettledSuccess AttemptStatus = "settled_success"
	AttemptSettledFailure AttemptStatus = "settled_failure"
	AttemptPendingReview  AttemptStatus = "settled_pending_review"
	AttemptExpired        AttemptStatus = "expired"
)

// NonTerminal reports whether the attempt can still be finalized. A
// pending-review attempt is settled for finalization purposes: only a human
// moves it further, through the refund tooling, never through Finalize.
func (s AttemptStatus) NonTerminal() bool {
	return s == AttemptInitiated || s == AttemptAwaitingAuth
}

// Attempt is one gateway-side authorization try for one order.
// GatewayAttemptID is the conversation identifier exchanged with the gateway
// and the idempotency key for finalization.
type Attempt struct {
	ID               string
	GatewayAttemptID string
	OrderNumber      string
	AmountCents      int64
	Currency         string
	CardBIN          string
	Installments     int
	Status           AttemptStatus
	ResultCode       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SettledAt        *time.Time
}

// NewAttempt builds an INITIATED attempt. Only the BIN of the card number is
// retained; the full PAN never touches storage.
func NewAttempt(orderNumber string, amountCents int64, currency, pan string, installments int) (Attempt, error) {
	if amountCents <= 0 {
		return Attempt{}, ErrInvalidAmount
	}
	if installments < 1 {
		installments = 1
	}
	bin, err := BINFromPAN(pan)
	if err != nil {
		return Attempt{}, err
	}

	now := time.Now().UTC()
	return Attempt{
		ID:               uuid.NewString(),
		GatewayAttemptID: uuid.NewString(),
		OrderNumber:      orderNumber,
		AmountCents:      amountCents,
		Currency:         currency,
		CardBIN:          bin,
		Installments:     installments,
		Status:           AttemptInitiated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NormalizeBIN strips formatting and requires exactly six digits.
func NormalizeBIN(bin string) (string, error) {
	s := stripFormatting(bin)
	if len(s) != 6 {
		return "", ErrInvalidBIN
	}
	return s, nil
}

// BINFromPAN extracts the first six digits of a card number.
func BINFromPAN(pan string) (string, error) {
	s := stripFormatting(pan)
	if len(s) < 6 {
		return "", ErrInvalidBIN
	}
	return s[:6], nil
}

func stripFormatting(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			// formatting, ignore
		default:
			return ""
		}
	}
	return b.String()
}
