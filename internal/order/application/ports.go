package application

import (
	"context"

	"github.com/trendmart/payments/internal/notification"
	"github.com/trendmart/payments/internal/order/domain"
)

type OrderRepository interface {
	Get(ctx context.Context, number string) (domain.Order, error)
	// TransitionWithOutbox performs a conditional status update (WHERE
	// status = from) and, when msg is non-nil, writes the notification
	// outbox row in the same transaction. A stale `from` must leave the row
	// untouched and report domain.ErrIllegalTransition.
	TransitionWithOutbox(ctx context.Context, number string, from, to domain.Status, msg *notification.Message, traceparent string) error
}
