package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/event-ticketing/internal/credential"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Delivery is what a Deliverer sends: the scannable tokens of an order's
// active credentials.
type Delivery struct {
	OrderID   uint64
	EventID   uint64
	Recipient string
	Tokens    []string
}

// Deliverer hands credentials to the customer.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

type (
	OrderReader interface {
		GetByID(ctx context.Context, id uint64) (*model.Order, error)
	}
	UserReader interface {
		GetByID(ctx context.Context, id uint64) (*model.User, error)
	}
	TicketLister interface {
		ListByOrder(ctx context.Context, orderID uint64, activeOnly bool) ([]model.IssuedTicket, error)
	}
	DeliveryLogWriter interface {
		Append(ctx context.Context, l *model.DeliveryLog) error
	}
)

// Dispatcher is the JobHandler of the notifier process.  Jobs are
// delivered at least once, so a job may be handled more than once for the
// same order; each attempt sends the current active credentials and is
// logged.
type Dispatcher struct {
	Orders    OrderReader
	Users     UserReader
	Tickets   TicketLister
	Logs      DeliveryLogWriter
	Deliverer Deliverer
	Log       *slog.Logger
}

// Handle loads the order's owner and active credentials and delivers them.
// A missing order or user is permanent and returned as an error so the
// broker dead-letters the job.
func (d *Dispatcher) Handle(ctx context.Context, job SendTicketsJob) error {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("order_id", job.OrderID)

	o, err := d.Orders.GetByID(ctx, job.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("order %d: %w", job.OrderID, err)
	}
	if err != nil {
		return fmt.Errorf("load order %d: %w", job.OrderID, err)
	}
	u, err := d.Users.GetByID(ctx, o.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", o.UserID, err)
	}
	tickets, err := d.Tickets.ListByOrder(ctx, o.ID, true)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	if len(tickets) == 0 {
		log.Warn("no active tickets to deliver")
		return nil
	}

	tokens := make([]string, 0, len(tickets))
	for _, t := range tickets {
		tok, err := credential.Encode(t.ID)
		if err != nil {
			return fmt.Errorf("encode ticket %s: %w", t.ID, err)
		}
		tokens = append(tokens, tok)
	}

	derr := d.Deliverer.Deliver(ctx, Delivery{OrderID: o.ID, EventID: o.EventID, Recipient: u.Email, Tokens: tokens})
	entry := &model.DeliveryLog{
		OrderID:   o.ID,
		Recipient: u.Email,
		Status:    model.DeliverySent,
		Provider:  d.Deliverer.Name(),
	}
	if derr != nil {
		msg := derr.Error()
		entry.Status = model.DeliveryFailed
		entry.Error = &msg
	}
	monitoring.RecordDelivery(entry.Status)
	if err := d.Logs.Append(ctx, entry); err != nil {
		log.Error("append delivery log", "err", err)
	}
	if derr != nil {
		return fmt.Errorf("deliver via %s: %w", d.Deliverer.Name(), derr)
	}
	log.Info("tickets delivered", "recipient", u.Email, "tickets", len(tokens), "provider", d.Deliverer.Name())
	return nil
}
