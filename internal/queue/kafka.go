package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/iliyamo/event-ticketing/internal/monitoring"
)

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// KafkaPublisher publishes send_tickets jobs synchronously so settlement
// only completes once the brokers acknowledged the message.  Jobs are keyed
// by order id.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	p, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("start kafka producer: %w", err)
	}
	return NewKafkaPublisherFrom(p, SendTicketsQueue), nil
}

// NewKafkaPublisherFrom wraps an existing producer.
func NewKafkaPublisherFrom(p sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) SendTickets(_ context.Context, job SendTicketsJob) (err error) {
	defer func() { monitoring.RecordPublish("kafka", err) }()
	body, err := job.Encode()
	if err != nil {
		return err
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(job.OrderID, 10)),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

// KafkaConsumer reads tickets.send as a member of a consumer group.  A job
// whose handler fails is copied to tickets.send.dead before its offset is
// marked, so one bad job does not block the partition.
type KafkaConsumer struct {
	group sarama.ConsumerGroup
	dead  sarama.SyncProducer
	log   *slog.Logger
}

func NewKafkaConsumer(brokers []string, groupID string, logger *slog.Logger) (*KafkaConsumer, error) {
	config := producerConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("start kafka consumer group: %w", err)
	}
	dead, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		_ = group.Close()
		return nil, fmt.Errorf("start kafka dead letter producer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaConsumer{group: group, dead: dead, log: logger.With("component", "kafka-consumer")}, nil
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context, h JobHandler) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.Error("consumer group error", "err", err)
		}
	}()
	handler := &groupHandler{handler: h, dead: c.dead, log: c.log}
	for {
		if err := c.group.Consume(ctx, []string{SendTicketsQueue}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Warn("consume failed", "err", err)
			if !sleep(ctx, 2*time.Second) {
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *KafkaConsumer) Close() error {
	err := c.group.Close()
	if derr := c.dead.Close(); err == nil {
		err = derr
	}
	return err
}

type groupHandler struct {
	handler JobHandler
	dead    sarama.SyncProducer
	log     *slog.Logger
}

func (g *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := g.process(sess.Context(), msg); err != nil {
				// Leave the offset unmarked so the job is redelivered.
				return err
			}
			sess.MarkMessage(msg, "")
		}
	}
}

// process handles one message.  It only returns an error when the job
// could neither be handled nor dead-lettered.
func (g *groupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	err := handleDelivery(ctx, g.handler, msg.Value)
	if err == nil {
		return nil
	}
	g.log.Error("handle send_tickets job failed", "err", err, "partition", msg.Partition, "offset", msg.Offset)
	_, _, derr := g.dead.SendMessage(&sarama.ProducerMessage{
		Topic: SendTicketsDeadQueue,
		Key:   sarama.ByteEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("error"), Value: []byte(err.Error())},
		},
	})
	if derr != nil {
		return fmt.Errorf("dead-letter offset %d: %w", msg.Offset, derr)
	}
	return nil
}
