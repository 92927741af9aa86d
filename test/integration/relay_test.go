package integration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendmart/payments/internal/notification"
	orderpg "github.com/trendmart/payments/internal/order/postgres"
	"github.com/trendmart/payments/pkg/outbox"
)

// One transactionally-enqueued notification must come out of kafka exactly
// once, with its type and traceparent in the headers.
func TestOutboxRelayDeliversNotification(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test, requires docker")
	}

	ctx := context.Background()
	env, err := Setup(ctx, true)
	if err != nil {
		t.Skipf("could not start containers: %v", err)
	}
	t.Cleanup(func() { env.Teardown(context.Background()) })

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, ApplySchema(ctx, pool))

	enqueueNotification(ctx, t, pool)

	log := slog.Default()
	writer := outbox.NewKafkaWriter(env.KAddr)
	writer.AllowAutoTopicCreation = true
	t.Cleanup(func() { _ = writer.Close() })

	store := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, map[string]string{"notification": "customer.notifications"}, "customer.notifications")
	relay := outbox.NewRelay(log, store, dispatch, "test-relay")

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go func() { _ = relay.Run(relayCtx) }()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: env.KAddr,
		Topic:   "customer.notifications",
		GroupID: "integration-test",
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancelRead := context.WithTimeout(ctx, 30*time.Second)
	defer cancelRead()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, "ORD-RELAY-1", string(msg.Key))
	assert.Contains(t, string(msg.Value), notification.TypePaymentConfirmed)
	assert.True(t, hasHeader(msg.Headers, "event_type", notification.TypePaymentConfirmed))
	assert.True(t, hasHeader(msg.Headers, "traceparent", "00-test-trace-01"))

	// the relay must also have marked the row sent
	require.Eventually(t, func() bool {
		var status string
		if err := pool.QueryRow(ctx, `SELECT status FROM outbox WHERE aggregate_id='ORD-RELAY-1'`).Scan(&status); err != nil {
			return false
		}
		return status == "sent"
	}, 10*time.Second, 200*time.Millisecond)
}

func enqueueNotification(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	require.NoError(t, err)
	msg := notification.Message{
		Type:          notification.TypePaymentConfirmed,
		OrderNumber:   "ORD-RELAY-1",
		CustomerName:  "Jane Shopper",
		CustomerEmail: "jane@example.com",
		AmountCents:   19900,
		Currency:      "USD",
	}
	require.NoError(t, orderpg.InsertNotificationTx(ctx, tx, "ORD-RELAY-1", msg, "00-test-trace-01"))
	require.NoError(t, tx.Commit(ctx))
}

func hasHeader(headers []kafkago.Header, key, value string) bool {
	for _, h := range headers {
		if h.Key == key && string(h.Value) == value {
			return true
		}
	}
	return false
}
