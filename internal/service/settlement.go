package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/credential"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Settlement steps reported in warnings and metrics.
const (
	StepLoad     = "load"
	StepIssue    = "issue"
	StepDebit    = "debit"
	StepVoucher  = "voucher"
	StepNotify   = "notify"
	StepComplete = "complete"
)

// SettlementStore is the persistence settlement runs against.  It is
// implemented by repository.SettlementRepo.
type SettlementStore interface {
	GetOrder(ctx context.Context, id uint64) (*model.Order, error)
	OrderItems(ctx context.Context, orderID uint64) ([]model.OrderItem, error)
	MarkPaid(ctx context.Context, orderID uint64, paidAt time.Time, operatorID uint64) (bool, error)
	MarkPaidBulk(ctx context.Context, ids []uint64, paidAt time.Time, operatorID uint64) ([]uint64, error)
	CreateInvitation(ctx context.Context, o *model.Order, item *model.OrderItem) error
	IssueTickets(ctx context.Context, orderID uint64, item model.OrderItem, ids []string) (bool, error)
	DebitInventory(ctx context.Context, orderID uint64, item model.OrderItem, capped bool) (bool, error)
	CountVoucherUsage(ctx context.Context, orderID, voucherID uint64, capped bool) (bool, error)
	CompleteSettlement(ctx context.Context, orderID uint64, at time.Time) error
	RecordSettlementFailure(ctx context.Context, orderID uint64, msg string) error
	IncompleteSettlements(ctx context.Context, before time.Time, maxAttempts, limit int) ([]uint64, error)
}

// Notifier hands a send_tickets job to the message broker.
type Notifier interface {
	SendTickets(ctx context.Context, job queue.SendTicketsJob) error
}

// Warning records a post-commit step that failed.  The order stays paid.
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// SettlementResult describes one settlement run.
type SettlementResult struct {
	OrderID uint64 `json:"order_id"`
	// Skipped is set when the order was not pending; nothing was written.
	Skipped         bool      `json:"skipped"`
	Completed       bool      `json:"completed"`
	IssuedTicketIDs []string  `json:"issued_ticket_ids"`
	Warnings        []Warning `json:"warnings"`
}

// SettlementOptions switch the ledgers from advisory to enforcing and
// bound the work a single settlement may do.  Zero values take the
// defaults below.
type SettlementOptions struct {
	EnforceCapacity     bool
	EnforceVoucherLimit bool

	// PublishTimeout bounds the hand-off of the send_tickets job.  A
	// publish that runs out of time is a notify warning.
	PublishTimeout time.Duration

	// MaxInvitationQuantity caps the tickets issued per guest.
	MaxInvitationQuantity int
}

const (
	DefaultPublishTimeout        = 5 * time.Second
	DefaultMaxInvitationQuantity = 100
)

// Settler turns paid orders into credentials.  Marking the order paid is
// the commit point; every step after it is applied at most once by the
// store and a failing step is reported as a warning, leaving the
// settlement open for the Reconciler.
type Settler struct {
	store    SettlementStore
	notifier Notifier
	log      *slog.Logger
	opts     SettlementOptions

	now   func() time.Time
	newID func() string
}

// NewSettler wires a Settler.  A nil logger falls back to slog.Default.
func NewSettler(store SettlementStore, notifier Notifier, logger *slog.Logger, opts SettlementOptions) *Settler {
	if store == nil || notifier == nil {
		panic("nil dependency passed to NewSettler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.MaxInvitationQuantity <= 0 {
		opts.MaxInvitationQuantity = DefaultMaxInvitationQuantity
	}
	return &Settler{
		store:    store,
		notifier: notifier,
		log:      logger.With("component", "settlement"),
		opts:     opts,
		now:      time.Now,
		newID:    credential.NewID,
	}
}

// Settle confirms payment of a pending order and runs its side effects.
// An order that is not pending, or that another confirmation moved first,
// yields a Skipped result and no error.
func (s *Settler) Settle(ctx context.Context, orderID, operatorID uint64) (*SettlementResult, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		monitoring.RecordSettlement("error")
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if o.Status != model.OrderPending {
		monitoring.RecordSettlement("skipped")
		return &SettlementResult{OrderID: orderID, Skipped: true}, nil
	}

	moved, err := s.store.MarkPaid(ctx, orderID, s.now(), operatorID)
	if err != nil {
		monitoring.RecordSettlement("error")
		return nil, fmt.Errorf("mark order %d paid: %w", orderID, err)
	}
	if !moved {
		monitoring.RecordSettlement("skipped")
		return &SettlementResult{OrderID: orderID, Skipped: true}, nil
	}

	// Past the commit point the side effects run to the end even if the
	// caller goes away.
	return s.fulfil(context.WithoutCancel(ctx), o), nil
}

// Fulfil runs the post-commit steps of an already paid order.  Steps that
// were applied by an earlier run are not repeated, so Fulfil is safe to
// call from the bulk path and the reconciler alike.
func (s *Settler) Fulfil(ctx context.Context, orderID uint64) (*SettlementResult, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if o.Status != model.OrderPaid {
		return nil, fmt.Errorf("fulfil order %d in status %s: %w", orderID, o.Status, repository.ErrConflict)
	}
	return s.fulfil(context.WithoutCancel(ctx), o), nil
}

func (s *Settler) fulfil(ctx context.Context, o *model.Order) *SettlementResult {
	res := &SettlementResult{OrderID: o.ID, IssuedTicketIDs: []string{}, Warnings: []Warning{}}
	log := s.log.With("order_id", o.ID)
	warn := func(step string, err error) {
		log.Warn("settlement step failed", "step", step, "err", err)
		monitoring.RecordSettlementFailure(step)
		res.Warnings = append(res.Warnings, Warning{Step: step, Message: err.Error()})
	}

	items, err := s.store.OrderItems(ctx, o.ID)
	if err != nil {
		warn(StepLoad, err)
		s.finish(ctx, res, log)
		return res
	}

	issueFailed := false
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		ids := make([]string, it.Quantity)
		for i := range ids {
			ids[i] = s.newID()
		}
		applied, err := s.store.IssueTickets(ctx, o.ID, it, ids)
		if err != nil {
			warn(StepIssue, fmt.Errorf("item %d: %w", it.ID, err))
			issueFailed = true
			continue
		}
		if applied {
			res.IssuedTicketIDs = append(res.IssuedTicketIDs, ids...)
		}
		if _, err := s.store.DebitInventory(ctx, o.ID, it, s.opts.EnforceCapacity); err != nil {
			warn(StepDebit, fmt.Errorf("item %d: %w", it.ID, err))
		}
	}

	if o.VoucherID != nil {
		if _, err := s.store.CountVoucherUsage(ctx, o.ID, *o.VoucherID, s.opts.EnforceVoucherLimit); err != nil {
			warn(StepVoucher, fmt.Errorf("voucher %d: %w", *o.VoucherID, err))
		}
	}

	if issueFailed {
		warn(StepNotify, errors.New("not sent: credentials incomplete"))
	} else if err := s.publish(ctx, o.ID); err != nil {
		warn(StepNotify, err)
	}

	s.finish(ctx, res, log)
	return res
}

// publish hands the job to the broker within PublishTimeout.  ctx is
// detached from the request at this point, so the timeout is the only
// bound on a broker that accepts the connection but never confirms.
func (s *Settler) publish(ctx context.Context, orderID uint64) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer cancel()
	err := s.notifier.SendTickets(ctx, queue.SendTicketsJob{OrderID: orderID, PublishedAt: s.now().UTC()})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("publish timed out after %s: %w", s.opts.PublishTimeout, err)
	}
	return err
}

// finish closes the marker when nothing failed and records the failure
// otherwise.
func (s *Settler) finish(ctx context.Context, res *SettlementResult, log *slog.Logger) {
	if len(res.Warnings) == 0 {
		if err := s.store.CompleteSettlement(ctx, res.OrderID, s.now()); err != nil {
			log.Error("complete settlement", "err", err)
			monitoring.RecordSettlementFailure(StepComplete)
			res.Warnings = append(res.Warnings, Warning{Step: StepComplete, Message: err.Error()})
			monitoring.RecordSettlement("partial")
			return
		}
		res.Completed = true
		monitoring.RecordSettlement("completed")
		log.Info("order settled", "tickets", len(res.IssuedTicketIDs))
		return
	}
	msgs := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		msgs = append(msgs, w.Step+": "+w.Message)
	}
	if err := s.store.RecordSettlementFailure(ctx, res.OrderID, strings.Join(msgs, "; ")); err != nil {
		log.Error("record settlement failure", "err", err)
	}
	monitoring.RecordSettlement("partial")
}

// Invitation requests complimentary tickets of one type for a list of
// guests.  Each guest gets an own zero-amount order.
type Invitation struct {
	EventID      uint64   `json:"event_id"`
	TicketTypeID uint64   `json:"ticket_type_id"`
	Quantity     int      `json:"quantity"`
	UserIDs      []uint64 `json:"user_ids"`
}

// Invite issues guest tickets without payment.  For every user an already
// paid invitation order with a single item is created together with its
// settlement marker, then fulfilled like a sale.  The ticket type must
// belong to the event.  When a store error stops the loop, the results of
// the guests already processed are returned with the error.
func (s *Settler) Invite(ctx context.Context, inv Invitation, operatorID uint64) ([]*SettlementResult, error) {
	if inv.EventID == 0 || inv.TicketTypeID == 0 || inv.Quantity <= 0 || len(inv.UserIDs) == 0 {
		return nil, ErrInvalidInvitation
	}
	if inv.Quantity > s.opts.MaxInvitationQuantity {
		return nil, fmt.Errorf("quantity %d above limit %d: %w", inv.Quantity, s.opts.MaxInvitationQuantity, ErrInvalidInvitation)
	}
	// Every guest is checked before the first order is written so a
	// rejected request leaves nothing behind to duplicate on retry.
	for i, userID := range inv.UserIDs {
		if userID == 0 {
			return nil, fmt.Errorf("user_ids[%d] is 0: %w", i, ErrInvalidInvitation)
		}
	}
	out := make([]*SettlementResult, 0, len(inv.UserIDs))
	for _, userID := range inv.UserIDs {
		paidAt := s.now().UTC()
		op := operatorID
		o := &model.Order{
			UserID:      userID,
			EventID:     inv.EventID,
			Status:      model.OrderPaid,
			Kind:        model.OrderKindInvitation,
			PaidAt:      &paidAt,
			ConfirmedBy: &op,
		}
		item := &model.OrderItem{TicketTypeID: inv.TicketTypeID, Quantity: inv.Quantity}
		if err := s.store.CreateInvitation(ctx, o, item); err != nil {
			if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrForbidden) {
				return out, fmt.Errorf("ticket type %d for event %d: %w", inv.TicketTypeID, inv.EventID, ErrInvalidInvitation)
			}
			return out, fmt.Errorf("create invitation for user %d: %w", userID, err)
		}
		out = append(out, s.fulfil(context.WithoutCancel(ctx), o))
	}
	return out, nil
}
