package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/event-ticketing/internal/credential"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/realtime"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// TicketStore is the credential persistence check-in needs.  It is
// implemented by repository.IssuedTicketRepo.
type TicketStore interface {
	GetView(ctx context.Context, id string) (*model.TicketView, error)
	Redeem(ctx context.Context, id string, staffID uint64, at time.Time) (bool, error)
	SetStatus(ctx context.Context, id, status string) error
}

// DoorFeed receives successful check-ins.
type DoorFeed interface {
	AnnounceCheckIn(ctx context.Context, c realtime.CheckIn) error
}

// LookupResult is the read-only preview shown at the gate.
type LookupResult struct {
	Result         Reason     `json:"result"`
	TicketID       string     `json:"ticket_id,omitempty"`
	OrderID        uint64     `json:"order_id,omitempty"`
	TicketTypeName string     `json:"ticket_type,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	CheckedInBy    *uint64    `json:"checked_in_by,omitempty"`
}

// RedeemResult is SUCCESS or CHECK_IN_FAILED.
type RedeemResult struct {
	Result      Reason     `json:"result"`
	TicketID    string     `json:"ticket_id,omitempty"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	CheckedInBy *uint64    `json:"checked_in_by,omitempty"`
}

// CheckIn is the gate state machine: active and unused, then used.  A
// disabled credential cannot be redeemed until it is enabled again.
type CheckIn struct {
	tickets TicketStore
	feed    DoorFeed
	log     *slog.Logger
	now     func() time.Time
}

func NewCheckIn(tickets TicketStore, feed DoorFeed, logger *slog.Logger) *CheckIn {
	if feed == nil {
		feed = realtime.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckIn{tickets: tickets, feed: feed, log: logger.With("component", "checkin"), now: time.Now}
}

// Lookup classifies a credential for eventID without changing it.
func (c *CheckIn) Lookup(ctx context.Context, cred string, eventID uint64) (*LookupResult, error) {
	res, err := c.lookup(ctx, cred, eventID)
	if err != nil {
		return nil, err
	}
	monitoring.RecordCheckIn(string(res.Result))
	return res, nil
}

func (c *CheckIn) lookup(ctx context.Context, cred string, eventID uint64) (*LookupResult, error) {
	id, err := credential.Parse(cred)
	if err != nil {
		return &LookupResult{Result: ReasonInvalidTicket}, nil
	}
	v, err := c.tickets.GetView(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &LookupResult{Result: ReasonInvalidTicket}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	if v.EventID != eventID {
		return &LookupResult{Result: ReasonWrongEvent, TicketID: v.ID}, nil
	}
	res := &LookupResult{TicketID: v.ID, OrderID: v.OrderID, TicketTypeName: v.TicketTypeName}
	switch {
	case v.Status == model.TicketDisabled:
		res.Result = ReasonTicketDisabled
	case v.IsUsed:
		res.Result = ReasonAlreadyUsed
		res.UsedAt = v.UsedAt
		res.CheckedInBy = v.CheckedInBy
	default:
		res.Result = ReasonValid
	}
	return res, nil
}

// Redeem marks the credential used by staffID.  Of any number of
// concurrent calls for the same credential exactly one gets SUCCESS.  A
// CHECK_IN_FAILED caller should look the credential up again to see why.
func (c *CheckIn) Redeem(ctx context.Context, cred string, staffID uint64) (*RedeemResult, error) {
	id, err := credential.Parse(cred)
	if err != nil {
		monitoring.RecordCheckIn(string(ReasonCheckInFailed))
		return &RedeemResult{Result: ReasonCheckInFailed}, nil
	}
	at := c.now().UTC()
	ok, err := c.tickets.Redeem(ctx, id, staffID, at)
	if err != nil {
		return nil, fmt.Errorf("redeem ticket: %w", err)
	}
	if !ok {
		monitoring.RecordCheckIn(string(ReasonCheckInFailed))
		return &RedeemResult{Result: ReasonCheckInFailed, TicketID: id}, nil
	}
	monitoring.RecordCheckIn(string(ReasonSuccess))
	c.announce(context.WithoutCancel(ctx), id, staffID, at)
	by := staffID
	return &RedeemResult{Result: ReasonSuccess, TicketID: id, UsedAt: &at, CheckedInBy: &by}, nil
}

func (c *CheckIn) announce(ctx context.Context, id string, staffID uint64, at time.Time) {
	if _, ok := c.feed.(realtime.Noop); ok {
		return
	}
	v, err := c.tickets.GetView(ctx, id)
	if err != nil {
		c.log.Warn("door feed: load ticket", "ticket_id", id, "err", err)
		return
	}
	ev := realtime.CheckIn{TicketID: id, EventID: v.EventID, TicketTypeName: v.TicketTypeName, StaffID: staffID, UsedAt: at}
	if err := c.feed.AnnounceCheckIn(ctx, ev); err != nil {
		c.log.Warn("door feed: announce", "ticket_id", id, "event_id", v.EventID, "err", err)
	}
}

// Disable blocks a credential from redemption.
func (c *CheckIn) Disable(ctx context.Context, cred string) error {
	return c.setStatus(ctx, cred, model.TicketDisabled)
}

// Enable makes a disabled credential redeemable again.  It does not reset
// a used credential.
func (c *CheckIn) Enable(ctx context.Context, cred string) error {
	return c.setStatus(ctx, cred, model.TicketActive)
}

func (c *CheckIn) setStatus(ctx context.Context, cred, status string) error {
	id, err := credential.Parse(cred)
	if err != nil {
		return ErrTicketNotFound
	}
	err = c.tickets.SetStatus(ctx, id, status)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("set ticket status %s: %w", status, err)
	}
	return nil
}
