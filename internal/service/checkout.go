package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventReader, TicketTypeReader and OrderWriter are the repository
// methods checkout uses.
type (
	EventReader interface {
		GetByID(ctx context.Context, id uint64) (*model.Event, error)
	}
	TicketTypeReader interface {
		GetByID(ctx context.Context, id uint64) (*model.TicketType, error)
	}
	OrderWriter interface {
		CreatePending(ctx context.Context, o *model.Order, items []model.OrderItem) error
	}
)

// CartLine is a requested quantity of one ticket type.
type CartLine struct {
	TicketTypeID uint64 `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

// CheckoutRequest is a customer's cart for one event.
type CheckoutRequest struct {
	UserID      uint64
	EventID     uint64
	Lines       []CartLine
	VoucherCode string
}

// CheckoutResult carries the created pending order.  On a voucher
// rejection Order is nil and Decision explains why.
type CheckoutResult struct {
	Order    *model.Order      `json:"order,omitempty"`
	Items    []model.OrderItem `json:"items,omitempty"`
	Decision *Decision         `json:"voucher,omitempty"`
}

// CheckoutLimits bounds the number of tickets one order may hold.  Zero
// fields take the defaults.
type CheckoutLimits struct {
	MaxLineQuantity  int
	MaxOrderQuantity int
}

const (
	DefaultMaxLineQuantity  = 20
	DefaultMaxOrderQuantity = 50
)

// Checkout creates pending orders.  The remaining-count check here is the
// same clamp a buyer sees in the shop; settlement does not repeat it.
type Checkout struct {
	events   EventReader
	types    TicketTypeReader
	orders   OrderWriter
	vouchers *VoucherService
	limits   CheckoutLimits
	now      func() time.Time
}

func NewCheckout(events EventReader, types TicketTypeReader, orders OrderWriter, vouchers *VoucherService, limits CheckoutLimits) *Checkout {
	if events == nil || types == nil || orders == nil || vouchers == nil {
		panic("nil dependency passed to NewCheckout")
	}
	if limits.MaxLineQuantity <= 0 {
		limits.MaxLineQuantity = DefaultMaxLineQuantity
	}
	if limits.MaxOrderQuantity <= 0 {
		limits.MaxOrderQuantity = DefaultMaxOrderQuantity
	}
	return &Checkout{events: events, types: types, orders: orders, vouchers: vouchers, limits: limits, now: time.Now}
}

// PlaceOrder validates the cart, snapshots unit prices, applies the voucher
// if one was given and inserts a pending order.
func (c *Checkout) PlaceOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	ev, err := c.events.GetByID(ctx, req.EventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if !ev.IsActive || !ev.SaleOpen(c.now()) {
		return nil, ErrEventClosed
	}

	lines, err := mergeLines(req.Lines, c.limits)
	if err != nil {
		return nil, err
	}
	items := make([]model.OrderItem, 0, len(lines))
	var total int64
	for _, l := range lines {
		tt, err := c.types.GetByID(ctx, l.TicketTypeID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("ticket type %d: %w", l.TicketTypeID, ErrInvalidCart)
		}
		if err != nil {
			return nil, fmt.Errorf("load ticket type %d: %w", l.TicketTypeID, err)
		}
		if tt.EventID != ev.ID || tt.Status != model.TicketTypePublic {
			return nil, fmt.Errorf("ticket type %d: %w", l.TicketTypeID, ErrInvalidCart)
		}
		if remaining, bounded := tt.Remaining(); bounded && int64(l.Quantity) > remaining {
			return nil, fmt.Errorf("ticket type %d has %d left: %w", tt.ID, remaining, ErrSoldOut)
		}
		if tt.Price > 0 && int64(l.Quantity) > (math.MaxInt64-total)/tt.Price {
			return nil, fmt.Errorf("order total overflows: %w", ErrInvalidCart)
		}
		items = append(items, model.OrderItem{TicketTypeID: tt.ID, Quantity: l.Quantity, UnitPrice: tt.Price})
		total += tt.Price * int64(l.Quantity)
	}

	o := &model.Order{UserID: req.UserID, EventID: ev.ID, TotalAmount: total, Kind: model.OrderKindSale}
	res := &CheckoutResult{}
	if code := strings.TrimSpace(req.VoucherCode); code != "" {
		d, err := c.vouchers.Validate(ctx, code, total, ev.ID)
		if err != nil {
			return nil, err
		}
		res.Decision = &d
		if !d.Accepted {
			return res, fmt.Errorf("%s: %w", d.Reason, ErrVoucherRejected)
		}
		o.DiscountAmount = d.Discount
		o.TotalAmount = d.FinalAmount
		id := d.Voucher.ID
		o.VoucherID = &id
	}

	if err := c.orders.CreatePending(ctx, o, items); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	res.Order = o
	res.Items = items
	return res, nil
}

// mergeLines folds repeated ticket types together and rejects empty
// carts, non-positive quantities and carts above the limits.  Each input
// quantity is bounded before it is summed so the sums cannot wrap.
func mergeLines(in []CartLine, limits CheckoutLimits) ([]CartLine, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("empty cart: %w", ErrInvalidCart)
	}
	idx := make(map[uint64]int, len(in))
	out := make([]CartLine, 0, len(in))
	var count int
	for _, l := range in {
		if l.TicketTypeID == 0 || l.Quantity <= 0 {
			return nil, fmt.Errorf("line for ticket type %d: %w", l.TicketTypeID, ErrInvalidCart)
		}
		if l.Quantity > limits.MaxLineQuantity {
			return nil, fmt.Errorf("ticket type %d: at most %d per order: %w", l.TicketTypeID, limits.MaxLineQuantity, ErrInvalidCart)
		}
		count += l.Quantity
		if count > limits.MaxOrderQuantity {
			return nil, fmt.Errorf("at most %d tickets per order: %w", limits.MaxOrderQuantity, ErrInvalidCart)
		}
		i, ok := idx[l.TicketTypeID]
		if !ok {
			idx[l.TicketTypeID] = len(out)
			out = append(out, l)
			continue
		}
		out[i].Quantity += l.Quantity
		if out[i].Quantity > limits.MaxLineQuantity {
			return nil, fmt.Errorf("ticket type %d: at most %d per order: %w", l.TicketTypeID, limits.MaxLineQuantity, ErrInvalidCart)
		}
	}
	return out, nil
}
