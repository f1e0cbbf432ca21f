package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"blog_trans_bot/internal/domain"
)

// HandlerFunc processes one decoded message.
type HandlerFunc func(ctx context.Context, msg PostMessage) error

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewConsumer connects with prefetch 1 so at most one message is in flight.
func NewConsumer(cfg Config, timeout time.Duration, logger *slog.Logger) (*Consumer, error) {
	conn, ch, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	logger.Info("consuming from rabbitmq", "queue", cfg.QueueName)

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   cfg.QueueName,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Run delivers messages to handle one at a time until ctx is done or the
// delivery channel closes.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			c.deliver(ctx, d, handle)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery, handle HandlerFunc) {
	var msg PostMessage
	err := json.Unmarshal(d.Body, &msg)
	if err != nil {
		err = fmt.Errorf("%w: %v", errMalformed, err)
	} else {
		runCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = handle(runCtx, msg)
		cancel()
	}

	switch settle(err, d.Redelivered) {
	case ack:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", "error", ackErr)
		}
	case requeue:
		c.logger.Warn("message failed, requeueing", "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", "error", nackErr)
		}
	case drop:
		c.logger.Error("message dropped", "message_id", d.MessageId, "redelivered", d.Redelivered, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("nack failed", "error", nackErr)
		}
	}
}

var errMalformed = errors.New("malformed message")

type outcome int

const (
	ack outcome = iota
	requeue
	drop
)

// settle maps a handler result to a broker acknowledgement. Oversized and
// malformed messages never succeed and are dropped at once; other failures
// get one redelivery.
func settle(err error, redelivered bool) outcome {
	switch {
	case err == nil:
		return ack
	case errors.Is(err, domain.ErrBodyTooLarge), errors.Is(err, errMalformed):
		return drop
	case redelivered:
		return drop
	default:
		return requeue
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
