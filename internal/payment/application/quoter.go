package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/trendmart/payments/internal/payment/domain"
)

// Quoter asks the gateway which installment plans a card prefix is eligible
// for. Stateless; nothing is persisted or cached.
type Quoter struct {
	log *slog.Logger
	gw  Gateway
}

func NewQuoter(log *slog.Logger, gw Gateway) *Quoter {
	return &Quoter{log: log, gw: gw}
}

// Quote validates the inputs and normalizes the gateway's answer, sorted by
// installment count ascending. A BIN the gateway does not recognize degrades
// to a single full-price plan: the cardholder must still be able to pay.
func (q *Quoter) Quote(ctx context.Context, bin string, amount decimal.Decimal) ([]domain.InstallmentPlan, error) {
	normalized, err := domain.NormalizeBIN(bin)
	if err != nil {
		return nil, err
	}
	cents, err := domain.CentsFromDecimal(amount)
	if err != nil {
		return nil, err
	}

	plans, err := q.gw.Quote(ctx, normalized, amount)
	if errors.Is(err, domain.ErrBINNotRecognized) {
		q.log.Info("bin unrecognized, falling back to single installment", "bin", normalized)
		return []domain.InstallmentPlan{{
			Count:               1,
			PerInstallmentCents: cents,
			TotalCents:          cents,
		}}, nil
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].Count < plans[j].Count })
	return plans, nil
}
