// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Analytics events and snapshot-published notifications
// travel as JSON; consumers hand each message to a MessageHandler.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler. A message whose handler keeps failing is logged and
// committed so one bad message cannot stall the partition.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig

	processed     atomic.Int64
	skipped       atomic.Int64
	fetchFailures atomic.Int64
}

// NewConsumer creates a Consumer in the configured consumer group, so each
// message is handled by one member of the group.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return NewGroupConsumer(cfg, topic, cfg.ConsumerGroup, handler)
}

// NewBroadcastConsumer creates a Consumer in a group of its own, so every
// instance sees every message. Snapshot reload notifications need this:
// each replica must reload.
func NewBroadcastConsumer(cfg config.KafkaConfig, topic, instance string, handler MessageHandler) *Consumer {
	return NewGroupConsumer(cfg, topic, fmt.Sprintf("%s-%s", cfg.ConsumerGroup, instance), handler)
}

func NewGroupConsumer(cfg config.KafkaConfig, topic, groupID string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", groupID),
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.fetchFailures.Add(1)
			c.logger.Error("failed to fetch message", "error", err)
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}
		c.fetchFailures.Store(0)
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)

		err = resilience.Retry(ctx, "kafka-handle", c.retry, func() error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.skipped.Add(1)
			c.logger.Error("skipping message after repeated failures",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else {
			c.processed.Add(1)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ConsumerStats counts messages since the consumer started.
type ConsumerStats struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Lag       int64 `json:"lag"`
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Lag:       c.reader.Stats().Lag,
	}
}

// HealthCheck reports down while fetches keep failing, which usually means
// the brokers are unreachable.
func (c *Consumer) HealthCheck(ctx context.Context) health.ComponentHealth {
	if n := c.fetchFailures.Load(); n > 0 {
		return health.ComponentHealth{
			Status:  health.StatusDown,
			Message: fmt.Sprintf("%d consecutive fetch failures", n),
		}
	}
	s := c.Stats()
	return health.ComponentHealth{
		Status:  health.StatusUp,
		Message: fmt.Sprintf("processed %d, skipped %d, lag %d", s.Processed, s.Skipped, s.Lag),
	}
}

// Close closes the underlying Kafka reader. Start closes it on return, so
// Close is only needed for a consumer that was never started.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
