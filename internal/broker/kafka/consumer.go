package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/BearBump/VinBox/internal/metrics"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает топик в consumer group и коммитит offset только после успешного handler.
type Consumer struct {
	r     messageReader
	topic string

	retryMin time.Duration
	retryMax time.Duration
}

const (
	defaultRetryMin = 500 * time.Millisecond
	defaultRetryMax = 30 * time.Second
)

// NewConsumer: новая группа читает топик с начала, чтобы хранилище можно было пересобрать из истории.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.FirstOffset,
		MaxWait:           time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg), topic)
}

func newConsumerWithReader(r messageReader, topic string) *Consumer {
	return &Consumer{r: r, topic: topic, retryMin: defaultRetryMin, retryMax: defaultRetryMax}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume крутится до первой ошибки чтения или commit либо до отмены ctx.
// Упавший handler повторяется на том же сообщении: reader его второй раз не отдаст.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := c.handle(ctx, msg, handler); err != nil {
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrapf(err, "commit offset %d", msg.Offset)
		}
		metrics.KafkaConsumedTotal.WithLabelValues(c.topic, "ok").Inc()
	}
}

// handle вызывает handler, пока тот не вернёт nil, с паузой от retryMin до retryMax.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler func(key, value []byte) error) error {
	delay := c.retryMin
	for attempt := 1; ; attempt++ {
		err := handler(msg.Key, msg.Value)
		if err == nil {
			return nil
		}
		metrics.KafkaConsumedTotal.WithLabelValues(c.topic, "error").Inc()
		slog.Warn("kafka handler failed, retrying",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"attempt", attempt, "retryIn", delay.String(), "error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.retryMax {
			delay = c.retryMax
		}
	}
}
