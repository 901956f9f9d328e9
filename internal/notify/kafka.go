package notify

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/order"
)

// KafkaPublisher fans order events out to a Kafka topic for real-time
// dashboard consumers. Writes happen on a background goroutine per event so
// request handlers never block on the broker.
type KafkaPublisher struct {
	writer *kafka.Writer
	lg     *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on the given
// brokers (comma-separated list).
func NewKafkaPublisher(brokersCSV, topic string, lg *zap.Logger) *KafkaPublisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		lg: lg,
	}
}

// Publish implements Publisher. The event is keyed by order id so updates
// for one order stay in partition order; failures are logged and dropped.
func (p *KafkaPublisher) Publish(ctx context.Context, event string, o *order.Order) {
	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: encodeOrder(event, o),
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
			p.lg.Warn("order event dropped",
				zap.String("event", event),
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}()
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
