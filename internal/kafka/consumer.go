package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Consumer struct {
	log    *zap.Logger
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		log: log,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}

// EventHandler decodes claim events and passes them to fn. Undecodable
// payloads and messages without a type are logged and skipped so that one bad
// message does not stall the group.
func EventHandler(log *zap.Logger, fn func(context.Context, ClaimEvent) error) func(context.Context, kafka.Message) error {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, msg kafka.Message) error {
		var event ClaimEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn("skipping undecodable claim event", zap.Int64("offset", msg.Offset), zap.Error(err))
			return nil
		}
		if event.Type == "" {
			log.Debug("skipping untyped claim event", zap.Int64("offset", msg.Offset))
			return nil
		}
		if err := fn(ctx, event); err != nil {
			return fmt.Errorf("handle %s for session %s: %w", event.Type, event.SessionID, err)
		}
		return nil
	}
}
