package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/utils"
)

func TestJobRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body, err := SendTicketsJob{OrderID: 42, PublishedAt: at}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"order_id":42,"published_at":"2026-01-02T03:04:05Z"}`, string(body))
}

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		job, err := DecodeSendTicketsJob(val)
		if err != nil {
			return err
		}
		if job.OrderID != 9 {
			return errors.New("wrong order id")
		}
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherFrom(mp, SendTicketsQueue)
	require.NoError(t, p.SendTickets(context.Background(), SendTicketsJob{OrderID: 9}))
	err := p.SendTickets(context.Background(), SendTicketsJob{OrderID: 10})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) SendTickets(context.Context, SendTicketsJob) error {
	f.calls++
	return errors.New("connection refused")
}

func TestBreakerPublisherFailsFast(t *testing.T) {
	next := &failingPublisher{}
	p := NewBreakerPublisher(next, utils.NewCircuitBreaker("broker", utils.BreakerSettings{MinRequests: 2, Timeout: time.Hour}))
	for i := 0; i < 5; i++ {
		assert.Error(t, p.SendTickets(context.Background(), SendTicketsJob{OrderID: 1}))
	}
	assert.Equal(t, 2, next.calls)
	assert.ErrorIs(t, p.SendTickets(context.Background(), SendTicketsJob{OrderID: 1}), utils.ErrCircuitOpen)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, ParseBrokers(" k1:9092, ,k2:9092 "))
	assert.Empty(t, ParseBrokers(""))
}

func TestLogPublisher(t *testing.T) {
	assert.NoError(t, LogPublisher{}.SendTickets(context.Background(), SendTicketsJob{OrderID: 1}))
}
