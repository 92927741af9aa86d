package outbox

import (
	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter builds the producer the dispatcher writes through. Topic is
// set per message, so none is configured here.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}
