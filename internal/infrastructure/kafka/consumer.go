package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/segmentio/kafka-go"
)

type EventHandler func(ctx context.Context, event cart.Event) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume decodes every message into a cart event and passes it to handler
// until ctx is done. Undecodable messages and handler errors are logged and
// skipped.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Consumer] Error reading message: %v", err)
				continue
			}

			event, err := DecodeEvent(msg)
			if err != nil {
				log.Printf("[Consumer] Skipping message at offset %d: %v", msg.Offset, err)
				continue
			}
			if err := handler(ctx, event); err != nil {
				log.Printf("[Consumer] Error handling %s: %v", event.EventType, err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeEvent parses a message value; the event_type header fills in a
// missing type.
func DecodeEvent(msg kafka.Message) (cart.Event, error) {
	var event cart.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return cart.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.EventType == "" {
		for _, h := range msg.Headers {
			if h.Key == headerEventType {
				event.EventType = string(h.Value)
			}
		}
	}
	if event.EventType == "" {
		return cart.Event{}, fmt.Errorf("failed to decode event: missing event type")
	}
	return event, nil
}
