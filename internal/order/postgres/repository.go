package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendmart/payments/internal/notification"
	"github.com/trendmart/payments/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `number, customer_name, customer_email, subtotal_cents, discount_cents,
	shipping_cents, tax_cents, total_cents, status, payment_status, payment_method,
	created_at, updated_at, paid_at, shipped_at, delivered_at`

func (r *Repository) Get(ctx context.Context, number string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number=$1`, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("order %s not found", number)
		}
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity, unit_price_cents FROM order_items WHERE order_number=$1`, number)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// TransitionWithOutbox updates the status only when it still matches `from`,
// stamping the matching timestamp column and writing the notification outbox
// row in the same transaction.
func (r *Repository) TransitionWithOutbox(ctx context.Context, number string, from, to domain.Status, msg *notification.Message, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now().UTC()
	ct, err := tx.Exec(ctx, `UPDATE orders SET status=$1, updated_at=$2,
			shipped_at = CASE WHEN $1='shipped' THEN $2 ELSE shipped_at END,
			delivered_at = CASE WHEN $1='delivered' THEN $2 ELSE delivered_at END
		WHERE number=$3 AND status=$4`, to, now, number, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s no longer %s", domain.ErrIllegalTransition, number, from)
	}

	if msg != nil {
		if err := InsertNotificationTx(ctx, tx, number, *msg, traceparent); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SaveTx inserts the order and its line items inside an existing transaction.
// Used by the authorization initiator, which creates the pending order and the
// payment attempt atomically.
func SaveTx(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	_, err := tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.Number, o.CustomerName, o.CustomerEmail, o.SubtotalCents, o.DiscountCents,
		o.ShippingCents, o.TaxCents, o.TotalCents, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.CreatedAt, o.UpdatedAt, o.PaidAt, o.ShippedAt, o.DeliveredAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_number, product_id, quantity, unit_price_cents)
			VALUES ($1,$2,$3,$4)`, o.Number, item.ProductID, item.Quantity, item.UnitPriceCents)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// GetForUpdateTx locks and returns the order row inside an existing transaction.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, number string) (domain.Order, error) {
	return scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number=$1 FOR UPDATE`, number))
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.Number, &o.CustomerName, &o.CustomerEmail, &o.SubtotalCents, &o.DiscountCents,
		&o.ShippingCents, &o.TaxCents, &o.TotalCents, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt)
	return o, err
}
