package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendmart/payments/internal/notification"
	orderdomain "github.com/trendmart/payments/internal/order/domain"
	orderpg "github.com/trendmart/payments/internal/order/postgres"
	"github.com/trendmart/payments/internal/postsale/application"
	"github.com/trendmart/payments/internal/postsale/domain"
)

type Repository struct {
	log        *slog.Logger
	pool       *pgxpool.Pool
	returnAddr notification.ReturnAddress
}

// NewRepository wires the post-sale store. returnAddr is the warehouse
// address included on approved-return notifications.
func NewRepository(log *slog.Logger, pool *pgxpool.Pool, returnAddr notification.ReturnAddress) *Repository {
	return &Repository{log: log, pool: pool, returnAddr: returnAddr}
}

const requestColumns = `id, kind, order_number, reason, note, refund_cents, status,
	admin_note, resolved_by, refund_pending, created_at, resolved_at`

func (r *Repository) Create(ctx context.Context, req domain.Request) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO postsale_requests (`+requestColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		req.ID, req.Kind, req.OrderNumber, req.Reason, req.Note, req.RefundCents, req.Status,
		req.AdminNote, req.ResolvedBy, req.RefundPending, req.CreatedAt, req.ResolvedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrOpenRequestExists
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM postsale_requests WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return req, err
}

func (r *Repository) ListPending(ctx context.Context) ([]domain.Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM postsale_requests
		WHERE status=$1 ORDER BY created_at`, domain.StatusPendingApproval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Resolve decides a request exactly once. The request row is locked first; a
// row already terminal commits nothing and reports the stored decision. An
// approval moves the order, enqueues the customer notification, and for
// returns the restock instruction, all in this one transaction.
func (r *Repository) Resolve(ctx context.Context, p application.ResolveParams) (application.ResolveResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return application.ResolveResult{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM postsale_requests WHERE id=$1 FOR UPDATE`, p.RequestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return application.ResolveResult{}, domain.ErrRequestNotFound
	}
	if err != nil {
		return application.ResolveResult{}, err
	}

	o, err := orderpg.GetForUpdateTx(ctx, tx, req.OrderNumber)
	if err != nil {
		return application.ResolveResult{}, err
	}

	if req.Status.Terminal() {
		return application.ResolveResult{Applied: false, Request: req, Order: o}, tx.Commit(ctx)
	}

	if p.Approve {
		if err := domain.CheckEligibility(req.Kind, o); err != nil {
			return application.ResolveResult{}, err
		}
	}

	now := time.Now().UTC()
	req.Status = domain.StatusRejected
	if p.Approve {
		req.Status = domain.StatusApproved
	}
	req.AdminNote = p.AdminNote
	req.ResolvedBy = p.Actor
	req.ResolvedAt = &now

	_, err = tx.Exec(ctx, `UPDATE postsale_requests
			SET status=$1, admin_note=$2, resolved_by=$3, resolved_at=$4
			WHERE id=$5`,
		req.Status, req.AdminNote, req.ResolvedBy, now, req.ID)
	if err != nil {
		return application.ResolveResult{}, err
	}

	if p.Approve {
		o, err = r.applyApprovalTx(ctx, tx, req, o, now, p.Traceparent)
	} else {
		err = r.notifyRejectedTx(ctx, tx, req, o, p.Traceparent)
	}
	if err != nil {
		return application.ResolveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return application.ResolveResult{}, err
	}
	return application.ResolveResult{Applied: true, Request: req, Order: o}, nil
}

func (r *Repository) applyApprovalTx(ctx context.Context, tx pgx.Tx, req domain.Request, o orderdomain.Order, now time.Time, traceparent string) (orderdomain.Order, error) {
	o.Status = req.Kind.TargetOrderStatus()
	o.PaymentStatus = orderdomain.PaymentRefunded
	o.UpdatedAt = now
	_, err := tx.Exec(ctx, `UPDATE orders SET status=$1, payment_status=$2, updated_at=$3 WHERE number=$4`,
		o.Status, o.PaymentStatus, now, o.Number)
	if err != nil {
		return o, err
	}

	msg := notification.Message{
		Type:          notification.TypeCancellationApproved,
		OrderNumber:   o.Number,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		AmountCents:   req.RefundCents,
	}
	if req.Kind == domain.KindReturn {
		msg.Type = notification.TypeReturnApproved
		addr := r.returnAddr
		msg.ReturnAddress = &addr
		if err := r.enqueueRestockTx(ctx, tx, o, traceparent); err != nil {
			return o, err
		}
	}
	return o, orderpg.InsertNotificationTx(ctx, tx, o.Number, msg, traceparent)
}

func (r *Repository) notifyRejectedTx(ctx context.Context, tx pgx.Tx, req domain.Request, o orderdomain.Order, traceparent string) error {
	msg := notification.Message{
		Type:          notification.TypeCancellationRejected,
		OrderNumber:   o.Number,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Reason:        req.AdminNote,
	}
	if req.Kind == domain.KindReturn {
		msg.Type = notification.TypeReturnRejected
	}
	return orderpg.InsertNotificationTx(ctx, tx, o.Number, msg, traceparent)
}

// enqueueRestockTx tells the inventory collaborator to put the returned items
// back on the shelf.
func (r *Repository) enqueueRestockTx(ctx context.Context, tx pgx.Tx, o orderdomain.Order, traceparent string) error {
	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_number=$1`, o.Number)
	if err != nil {
		return err
	}
	defer rows.Close()

	type restockItem struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	var items []restockItem
	for rows.Next() {
		var it restockItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{"order_number": o.Number, "items": items})
	if err != nil {
		return err
	}
	return orderpg.InsertOutboxTx(ctx, tx, "restock", o.Number, "inventory.restock", payload, traceparent)
}

func (r *Repository) MarkRefundPending(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE postsale_requests SET refund_pending=TRUE WHERE id=$1 AND status=$2`,
		id, domain.StatusApproved)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func scanRequest(row pgx.Row) (domain.Request, error) {
	var req domain.Request
	err := row.Scan(&req.ID, &req.Kind, &req.OrderNumber, &req.Reason, &req.Note, &req.RefundCents,
		&req.Status, &req.AdminNote, &req.ResolvedBy, &req.RefundPending, &req.CreatedAt, &req.ResolvedAt)
	return req, err
}
