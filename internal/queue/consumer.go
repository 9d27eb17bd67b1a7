package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobHandler processes one send_tickets job.  A returned error sends the
// message to the dead letter queue.
type JobHandler interface {
	Handle(ctx context.Context, job SendTicketsJob) error
}

// RabbitConsumer consumes tickets.send with manual acks.
type RabbitConsumer struct {
	url      string
	prefetch int
	log      *slog.Logger
}

func NewRabbitConsumer(url string, prefetch int, logger *slog.Logger) *RabbitConsumer {
	if url == "" {
		url = DefaultAMQPURL
	}
	if prefetch <= 0 {
		prefetch = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitConsumer{url: url, prefetch: prefetch, log: logger.With("component", "rabbitmq-consumer")}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  It only returns ctx.Err().
func (c *RabbitConsumer) Run(ctx context.Context, h JobHandler) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("dial broker failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
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

func (c *RabbitConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection, h JobHandler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("set QoS failed", "err", err)
	}
	if err := declareTopology(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(SendTicketsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleDelivery(ctx, h, d.Body); err != nil {
				c.log.Error("handle send_tickets job failed", "err", err, "message_id", d.MessageId)
				_ = d.Nack(false, false) // dead-lettered, not requeued
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleDelivery(ctx context.Context, h JobHandler, body []byte) error {
	job, err := DecodeSendTicketsJob(body)
	if err != nil {
		return err
	}
	return h.Handle(ctx, job)
}
