package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/segmentio/kafka-go"
)

const headerEventType = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes cart events keyed by cart key, so one cart's events stay
// in one partition and in order.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, event cart.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.CartKey),
		Value:   data,
		Time:    event.Timestamp,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(event.EventType)}},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
