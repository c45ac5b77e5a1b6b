package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic   = "catalog-invalidations"
	DefaultGroupID = "storefront-invalidator"
	topicHeader    = "x-shopify-topic"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds change notifications published on a Kafka topic through the
// Invalidator. Messages on the bus are trusted and carry no secret.
type Consumer struct {
	reader      MessageReader
	invalidator *Invalidator
	secret      string
	logger      *slog.Logger
	retryDelay  time.Duration
}

func NewConsumer(invalidator *Invalidator, secret string, logger *slog.Logger, topic string, brokers ...string) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  DefaultGroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, invalidator, secret, logger)
}

func newConsumer(reader MessageReader, invalidator *Invalidator, secret string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:      reader,
		invalidator: invalidator,
		secret:      secret,
		logger:      logger,
		retryDelay:  time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing reader", slog.Any("error", err))
	}
}

// consumeOne handles a single message. The offset is committed only once the
// message is dealt with; a failing cache is retried until it recovers or ctx
// ends.
func (c *Consumer) consumeOne(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.ErrorContext(ctx, "error fetching message", slog.Any("error", err))
		c.sleep(ctx)
		return
	}

	if topic := messageTopic(m); topic == "" {
		c.logger.WarnContext(ctx, "message without topic",
			slog.Int64("offset", m.Offset), slog.Int("partition", m.Partition))
	} else if !c.dispatch(ctx, topic) {
		return
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.ErrorContext(ctx, "failed to commit message",
			slog.Int64("offset", m.Offset), slog.Any("error", err))
	}
}

// dispatch reports false when ctx ended before the notification was handled.
func (c *Consumer) dispatch(ctx context.Context, topic string) bool {
	for {
		_, err := c.invalidator.Handle(ctx, Notification{Secret: c.secret, Topic: topic})
		if !errors.Is(err, ErrInvalidationFailed) {
			if err != nil {
				c.logger.ErrorContext(ctx, "failed to handle notification", slog.String("topic", topic), slog.Any("error", err))
			}
			return true
		}
		if !c.sleep(ctx) {
			return false
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryDelay):
		return true
	}
}

// messageTopic reads the topic from the x-shopify-topic header, falling back
// to a "topic" field in the JSON body.
func messageTopic(m kafka.Message) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Key, topicHeader) {
			return string(h.Value)
		}
	}

	var payload struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		return ""
	}
	return payload.Topic
}
