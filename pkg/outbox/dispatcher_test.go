package outbox

import (
	"context"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingProducer struct {
	msgs []kafka.Message
}

func (p *capturingProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestDispatchRoutesByAggregateType(t *testing.T) {
	p := &capturingProducer{}
	d := NewDispatcher(slog.Default(), p, map[string]string{
		"notification": "notifications",
		"inventory":    "inventory.restock",
	}, "notifications")

	err := d.Dispatch(context.Background(), Event{
		ID:            1,
		AggregateType: "inventory",
		AggregateID:   "order-1",
		Type:          "inventory.restock_requested",
		Payload:       []byte(`{}`),
		Traceparent:   "00-abc-def-01",
	})
	require.NoError(t, err)
	require.Len(t, p.msgs, 1)
	assert.Equal(t, "inventory.restock", p.msgs[0].Topic)
	assert.Equal(t, "order-1", string(p.msgs[0].Key))

	var foundType, foundTrace bool
	for _, h := range p.msgs[0].Headers {
		switch h.Key {
		case "event_type":
			foundType = true
			assert.Equal(t, "inventory.restock_requested", string(h.Value))
		case "traceparent":
			foundTrace = true
		}
	}
	assert.True(t, foundType)
	assert.True(t, foundTrace)
}

func TestDispatchFallsBackToDefaultTopic(t *testing.T) {
	p := &capturingProducer{}
	d := NewDispatcher(slog.Default(), p, nil, "notifications")

	err := d.Dispatch(context.Background(), Event{ID: 2, AggregateType: "notification", Type: "payment.confirmed"})
	require.NoError(t, err)
	require.Len(t, p.msgs, 1)
	assert.Equal(t, "notifications", p.msgs[0].Topic)
}
