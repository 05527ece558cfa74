package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. A returned error makes the consumer
// retry the same message; return nil for messages that can never succeed.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// messageReader is the part of *kafkago.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads a single topic as part of a consumer group.
type Consumer struct {
	reader     messageReader
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewConsumer creates a consumer for topic in groupID.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return newConsumer(kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	}), logger)
}

func newConsumer(reader messageReader, logger *zap.Logger) *Consumer {
	return &Consumer{reader: reader, logger: logger, newBackOff: defaultBackOff}
}

// defaultBackOff retries forever, from 200ms up to 30s between attempts.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Consume blocks, dispatching each message to handler until ctx is cancelled
// or the reader is closed. A message is retried with backoff until the handler
// succeeds, and the next message is not fetched before then, so offsets are
// only ever committed in order. Fetch and commit failures are retried too.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.fetch(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := c.retry(ctx, "message handler failed", msg, func() error {
			return handler(ctx, msg)
		}); err != nil {
			return err
		}

		if err := c.retry(ctx, "failed to commit offset", msg, func() error {
			return c.reader.CommitMessages(ctx, msg)
		}); err != nil {
			return err
		}
	}
}

func (c *Consumer) fetch(ctx context.Context) (kafkago.Message, error) {
	var msg kafkago.Message
	op := func() error {
		var err error
		msg, err = c.reader.FetchMessage(ctx)
		if err != nil && (ctx.Err() != nil || errors.Is(err, io.EOF)) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Error("failed to fetch message", zap.Duration("retry_in", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		if ctx.Err() != nil {
			return kafkago.Message{}, ctx.Err()
		}
		return kafkago.Message{}, err
	}
	return msg, nil
}

// retry runs op until it succeeds or ctx is done, in which case it returns ctx.Err().
func (c *Consumer) retry(ctx context.Context, failure string, msg kafkago.Message, op func() error) error {
	notify := func(err error, wait time.Duration) {
		c.logger.Error(failure,
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
