package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendmart/payments/internal/notification"
	orderdomain "github.com/trendmart/payments/internal/order/domain"
	orderpg "github.com/trendmart/payments/internal/order/postgres"
	"github.com/trendmart/payments/internal/payment/application"
	"github.com/trendmart/payments/internal/payment/domain"
)

// ErrOpenAttemptExists surfaces the partial unique index guarding one
// non-terminal attempt per order.
var ErrOpenAttemptExists = errors.New("order already has an open payment attempt")

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const attemptColumns = `id, gateway_attempt_id, order_number, amount_cents, currency, card_bin,
	installments, status, result_code, created_at, updated_at, settled_at`

func (r *Repository) CreateWithOrder(ctx context.Context, o orderdomain.Order, a domain.Attempt) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := orderpg.SaveTx(ctx, tx, o); err != nil {
		return err
	}
	if err := insertAttemptTx(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateForOrder attaches a fresh attempt to an existing pending order. Any
// non-terminal attempt it supersedes is expired in the same transaction, so
// the one-open-attempt index never trips on an honest retry.
func (r *Repository) CreateForOrder(ctx context.Context, a domain.Attempt) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := orderpg.GetForUpdateTx(ctx, tx, a.OrderNumber)
	if err != nil {
		return err
	}
	if o.Status != orderdomain.StatusPending || o.PaymentStatus != orderdomain.PaymentUnpaid {
		return fmt.Errorf("order %s is not awaiting payment", a.OrderNumber)
	}

	_, err = tx.Exec(ctx, `UPDATE payment_attempts SET status=$1, updated_at=$2
		WHERE order_number=$3 AND status IN ($4,$5)`,
		domain.AttemptExpired, time.Now().UTC(), a.OrderNumber,
		domain.AttemptInitiated, domain.AttemptAwaitingAuth)
	if err != nil {
		return err
	}

	if err := insertAttemptTx(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertAttemptTx(ctx context.Context, tx pgx.Tx, a domain.Attempt) error {
	_, err := tx.Exec(ctx, `INSERT INTO payment_attempts (`+attemptColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.GatewayAttemptID, a.OrderNumber, a.AmountCents, a.Currency, a.CardBIN,
		a.Installments, a.Status, a.ResultCode, a.CreatedAt, a.UpdatedAt, a.SettledAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrOpenAttemptExists
	}
	return err
}

func (r *Repository) MarkAwaitingAuthentication(ctx context.Context, gatewayAttemptID string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE payment_attempts SET status=$1, updated_at=$2
		WHERE gateway_attempt_id=$3 AND status=$4`,
		domain.AttemptAwaitingAuth, time.Now().UTC(), gatewayAttemptID, domain.AttemptInitiated)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("attempt %s is not initiated", gatewayAttemptID)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, gatewayAttemptID string) (domain.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE gateway_attempt_id=$1`, gatewayAttemptID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, err
}

// Finalize is the settlement compare-and-set. The row lock serializes
// concurrent callers from separate processes; only the caller that still
// observes a non-terminal state performs the writes.
func (r *Repository) Finalize(ctx context.Context, p application.FinalizeParams) (application.FinalizeResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return application.FinalizeResult{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE gateway_attempt_id=$1 FOR UPDATE`, p.GatewayAttemptID))
	if errors.Is(err, pgx.ErrNoRows) {
		return application.FinalizeResult{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return application.FinalizeResult{}, err
	}

	if a.Status == domain.AttemptExpired {
		return application.FinalizeResult{}, domain.ErrAttemptExpired
	}
	if !a.Status.NonTerminal() {
		// lost the race; the committed row carries the original outcome
		return application.FinalizeResult{Won: false, Attempt: a}, tx.Commit(ctx)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `UPDATE payment_attempts SET status=$1, result_code=$2, updated_at=$3, settled_at=$3
		WHERE gateway_attempt_id=$4`,
		p.Target, p.ResultCode, now, p.GatewayAttemptID)
	if err != nil {
		return application.FinalizeResult{}, err
	}
	a.Status = p.Target
	a.ResultCode = p.ResultCode
	a.UpdatedAt = now
	a.SettledAt = &now

	if p.MarkOrderPaid {
		if err := r.markOrderPaidTx(ctx, tx, a.OrderNumber, a.Currency, now, p.Traceparent); err != nil {
			return application.FinalizeResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return application.FinalizeResult{}, err
	}
	return application.FinalizeResult{Won: true, Attempt: a}, nil
}

func (r *Repository) markOrderPaidTx(ctx context.Context, tx pgx.Tx, number, currency string, now time.Time, traceparent string) error {
	o, err := orderpg.GetForUpdateTx(ctx, tx, number)
	if err != nil {
		return err
	}

	status := o.Status
	if status == orderdomain.StatusPending {
		status = orderdomain.StatusProcessing
	}
	_, err = tx.Exec(ctx, `UPDATE orders SET payment_status=$1, status=$2, paid_at=$3, updated_at=$3 WHERE number=$4`,
		orderdomain.PaymentPaid, status, now, number)
	if err != nil {
		return err
	}

	// the notification payload comes from the row this transaction commits
	o.PaymentStatus = orderdomain.PaymentPaid
	o.Status = status
	return orderpg.InsertNotificationTx(ctx, tx, number, notification.Message{
		Type:          notification.TypePaymentConfirmed,
		OrderNumber:   o.Number,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		AmountCents:   o.TotalCents,
		Currency:      currency,
	}, traceparent)
}

func (r *Repository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `UPDATE payment_attempts SET status=$1, updated_at=$2
		WHERE status IN ($3,$4) AND updated_at < $5
		RETURNING gateway_attempt_id`,
		domain.AttemptExpired, time.Now().UTC(),
		domain.AttemptInitiated, domain.AttemptAwaitingAuth, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) ListPendingReview(ctx context.Context) ([]domain.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE status=$1 ORDER BY created_at`,
		domain.AttemptPendingReview)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SuccessfulAttempt returns the settled-success attempt for an order, used
// by the post-sale workflow to address refunds.
func (r *Repository) SuccessfulAttempt(ctx context.Context, orderNumber string) (domain.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE order_number=$1 AND status=$2
		 ORDER BY settled_at DESC LIMIT 1`,
		orderNumber, domain.AttemptSettledSuccess))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, err
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var a domain.Attempt
	err := row.Scan(&a.ID, &a.GatewayAttemptID, &a.OrderNumber, &a.AmountCents, &a.Currency, &a.CardBIN,
		&a.Installments, &a.Status, &a.ResultCode, &a.CreatedAt, &a.UpdatedAt, &a.SettledAt)
	return a, err
}
