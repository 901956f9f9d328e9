// Package notify is the one-way outbound port for order events. Publishers
// are best-effort: delivery failures are logged and never influence the
// outcome of the operation that emitted the event.
package notify

import (
	"context"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/order"
)

// Publisher delivers an order event to interested subscribers. It satisfies
// the lifecycle's notifier port; event names live in the order package.
type Publisher interface {
	Publish(ctx context.Context, event string, o *order.Order)
}

var (
	_ Publisher = (*LogPublisher)(nil)
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = Nop{}
)

// encodeOrder renders the event payload consumed by dashboard subscribers.
func encodeOrder(event string, o *order.Order) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("event", func(e *jx.Encoder) { e.Str(event) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.LineItems {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unit_price", func(e *jx.Encoder) { e.Str(it.UnitPrice.StringFixed(2)) })
					})
				}
			})
		})
		e.Field("emitted_at", func(e *jx.Encoder) { e.Str(time.Now().UTC().Format(time.RFC3339Nano)) })
	})
	return e.Bytes()
}

// LogPublisher writes events to the service log. It serves deployments with
// no broker configured and doubles as the fallback in tests.
type LogPublisher struct {
	lg *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(lg *zap.Logger) *LogPublisher {
	return &LogPublisher{lg: lg}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, event string, o *order.Order) {
	p.lg.Info("order event",
		zap.String("event", event),
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.ByteString("payload", encodeOrder(event, o)),
	)
}

// Nop discards all events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, *order.Order) {}
