// Package events publishes order lifecycle events to Kafka so downstream
// services (fulfilment, notifications) can react to completed orders.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/checkout"
	"github.com/nilecart/storefront/internal/domain/order"
)

var _ checkout.Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher emits one message per completed order, keyed by order ID so
// per-order ordering is preserved across partitions.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a KafkaPublisher writing to the given topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

// orderCompletedEvent is the wire shape of an order completion message.
type orderCompletedEvent struct {
	OrderID   string          `json:"order_id"`
	Total     decimal.Decimal `json:"total"`
	Method    string          `json:"method"`
	PromoCode string          `json:"promo_code,omitempty"`
	FreeOrder bool            `json:"free_order"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderCompleted publishes a completion event for the order.
func (p *KafkaPublisher) OrderCompleted(ctx context.Context, o *order.Order) error {
	payload, err := json.Marshal(orderCompletedEvent{
		OrderID:   o.ID,
		Total:     o.Total,
		Method:    string(o.Method),
		PromoCode: o.PromoCode,
		FreeOrder: o.FreeOrder,
		CreatedAt: o.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID),
		Value: payload,
	})
	if err != nil {
		return errors.Wrap(err, "write order event")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards all events. Used when Kafka is not configured.
type NopPublisher struct{}

var _ checkout.Publisher = NopPublisher{}

// OrderCompleted does nothing.
func (NopPublisher) OrderCompleted(context.Context, *order.Order) error { return nil }
