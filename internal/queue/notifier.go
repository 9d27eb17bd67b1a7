package queue

import (
	"context"
	"log/slog"

	"github.com/iliyamo/event-ticketing/internal/utils"
)

// Publisher is the interface settlement publishes through.
type Publisher interface {
	SendTickets(ctx context.Context, job SendTicketsJob) error
}

// BreakerPublisher fails fast while the broker keeps failing, so a broker
// outage does not add a dial timeout to every confirmation.  Settlements
// that fail here are picked up by the reconciler.
type BreakerPublisher struct {
	next    Publisher
	breaker *utils.CircuitBreaker
}

func NewBreakerPublisher(next Publisher, breaker *utils.CircuitBreaker) *BreakerPublisher {
	return &BreakerPublisher{next: next, breaker: breaker}
}

func (b *BreakerPublisher) SendTickets(ctx context.Context, job SendTicketsJob) error {
	return b.breaker.Execute(func() error { return b.next.SendTickets(ctx, job) })
}

// LogPublisher only logs jobs.  It is selected with NOTIFY_TRANSPORT=none.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) SendTickets(_ context.Context, job SendTicketsJob) error {
	l := p.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("send_tickets job not published (transport none)", "order_id", job.OrderID)
	return nil
}
