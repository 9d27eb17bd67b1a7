package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/realtime"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// memStore mimics the guarded SQL of the repositories under one mutex:
// every method is the equivalent of a single statement or transaction.
type memStore struct {
	mu sync.Mutex

	orders   map[uint64]*model.Order
	items    map[uint64][]model.OrderItem
	types    map[uint64]*model.TicketType
	vouchers map[uint64]*model.Voucher
	tickets  map[string]*model.IssuedTicket
	markers  map[uint64]*marker
	steps    map[string]bool

	nextOrder uint64
	nextItem  uint64

	// failIssue makes IssueTickets fail while it is > 0.
	failIssue int
	failDebit error

	// failInviteFor makes CreateInvitation fail for that user.
	failInviteFor uint64
}

type marker struct {
	createdAt time.Time
	completed bool
	attempts  int
	lastError string
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[uint64]*model.Order{},
		items:     map[uint64][]model.OrderItem{},
		types:     map[uint64]*model.TicketType{},
		vouchers:  map[uint64]*model.Voucher{},
		tickets:   map[string]*model.IssuedTicket{},
		markers:   map[uint64]*marker{},
		steps:     map[string]bool{},
		nextOrder: 1000,
		nextItem:  5000,
	}
}

func (m *memStore) addType(id, eventID uint64, price int64, total *int64, sold int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[id] = &model.TicketType{ID: id, EventID: eventID, Name: fmt.Sprintf("type-%d", id), Price: price,
		QuantityTotal: total, QuantitySold: sold, Status: model.TicketTypePublic}
}

// addOrder inserts a pending order with one item per (type, qty) pair.
func (m *memStore) addOrder(id, eventID uint64, status string, lines ...[2]uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = &model.Order{ID: id, UserID: 1, EventID: eventID, Status: status, Kind: model.OrderKindSale}
	for _, l := range lines {
		m.nextItem++
		m.items[id] = append(m.items[id], model.OrderItem{ID: m.nextItem, OrderID: id, TicketTypeID: l[0], Quantity: int(l[1])})
	}
}

func (m *memStore) ticketsOf(orderID uint64) []*model.IssuedTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.IssuedTicket
	for _, t := range m.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) sold(typeID uint64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[typeID].QuantitySold
}

func (m *memStore) GetOrder(_ context.Context, id uint64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) OrderItems(_ context.Context, orderID uint64) ([]model.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OrderItem(nil), m.items[orderID]...), nil
}

func (m *memStore) MarkPaid(_ context.Context, orderID uint64, paidAt time.Time, operatorID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != model.OrderPending {
		return false, nil
	}
	o.Status = model.OrderPaid
	o.PaidAt = &paidAt
	o.ConfirmedBy = &operatorID
	m.markers[orderID] = &marker{createdAt: paidAt}
	return true, nil
}

func (m *memStore) MarkPaidBulk(_ context.Context, ids []uint64, paidAt time.Time, operatorID uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := []uint64{}
	for _, id := range ids {
		o, ok := m.orders[id]
		if !ok || o.Status != model.OrderPending {
			continue
		}
		o.Status = model.OrderPaid
		o.PaidAt = &paidAt
		o.ConfirmedBy = &operatorID
		m.markers[id] = &marker{createdAt: paidAt}
		moved = append(moved, id)
	}
	return moved, nil
}

func (m *memStore) CreateInvitation(_ context.Context, o *model.Order, item *model.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInviteFor != 0 && o.UserID == m.failInviteFor {
		return errors.New("connection reset")
	}
	tt, ok := m.types[item.TicketTypeID]
	if !ok {
		return repository.ErrNotFound
	}
	if tt.EventID != o.EventID {
		return repository.ErrForbidden
	}
	m.nextOrder++
	m.nextItem++
	o.ID = m.nextOrder
	item.ID = m.nextItem
	item.OrderID = o.ID
	cp := *o
	m.orders[o.ID] = &cp
	m.items[o.ID] = []model.OrderItem{*item}
	m.markers[o.ID] = &marker{createdAt: *o.PaidAt}
	return nil
}

// stepKey mirrors the settlement_steps primary key.
func stepKey(orderID uint64, step string) string { return fmt.Sprintf("%d/%s", orderID, step) }

func (m *memStore) IssueTickets(_ context.Context, orderID uint64, item model.OrderItem, ids []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stepKey(orderID, repository.IssueStep(item.ID))
	if m.steps[key] {
		return false, nil
	}
	if m.failIssue > 0 {
		m.failIssue--
		return false, errors.New("insert issued_tickets: connection reset")
	}
	for _, id := range ids {
		if _, dup := m.tickets[id]; dup {
			return false, repository.ErrConflict
		}
	}
	for _, id := range ids {
		m.tickets[id] = &model.IssuedTicket{ID: id, OrderID: orderID, TicketTypeID: item.TicketTypeID, Status: model.TicketActive}
	}
	m.steps[key] = true
	return true, nil
}

func (m *memStore) DebitInventory(_ context.Context, orderID uint64, item model.OrderItem, capped bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stepKey(orderID, repository.DebitStep(item.ID))
	if m.steps[key] {
		return false, nil
	}
	if m.failDebit != nil {
		return false, m.failDebit
	}
	tt, ok := m.types[item.TicketTypeID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if capped && tt.QuantityTotal != nil && tt.QuantitySold+int64(item.Quantity) > *tt.QuantityTotal {
		return false, repository.ErrCapacityExceeded
	}
	tt.QuantitySold += int64(item.Quantity)
	m.steps[key] = true
	return true, nil
}

func (m *memStore) CountVoucherUsage(_ context.Context, orderID, voucherID uint64, capped bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stepKey(orderID, repository.StepVoucher)
	if m.steps[key] {
		return false, nil
	}
	v, ok := m.vouchers[voucherID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if capped && v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return false, repository.ErrUsageExhausted
	}
	v.UsageCount++
	m.steps[key] = true
	return true, nil
}

func (m *memStore) CompleteSettlement(_ context.Context, orderID uint64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mk, ok := m.markers[orderID]; ok && !mk.completed {
		mk.completed = true
		mk.attempts++
		mk.lastError = ""
	}
	return nil
}

func (m *memStore) RecordSettlementFailure(_ context.Context, orderID uint64, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mk, ok := m.markers[orderID]; ok && !mk.completed {
		mk.attempts++
		mk.lastError = msg
	}
	return nil
}

func (m *memStore) IncompleteSettlements(_ context.Context, before time.Time, maxAttempts, limit int) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []uint64{}
	for id, mk := range m.markers {
		if mk.completed || mk.createdAt.After(before) {
			continue
		}
		if maxAttempts > 0 && mk.attempts >= maxAttempts {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *memStore) markerOf(orderID uint64) marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mk, ok := m.markers[orderID]; ok {
		return *mk
	}
	return marker{}
}

// Ticket store side, used by CheckIn.

func (m *memStore) addTicket(id string, orderID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[id] = &model.IssuedTicket{ID: id, OrderID: orderID, TicketTypeID: 1, Status: model.TicketActive}
}

func (m *memStore) GetView(_ context.Context, id string) (*model.TicketView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	o := m.orders[t.OrderID]
	v := &model.TicketView{IssuedTicket: *t, TicketTypeName: "General"}
	if o != nil {
		v.EventID = o.EventID
		v.UserID = o.UserID
	}
	return v, nil
}

func (m *memStore) Redeem(_ context.Context, id string, staffID uint64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.IsUsed || t.Status != model.TicketActive {
		return false, nil
	}
	t.IsUsed = true
	t.UsedAt = &at
	t.CheckedInBy = &staffID
	return true, nil
}

func (m *memStore) SetStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	return nil
}

// recordingNotifier counts jobs and can be told to fail.
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []queue.SendTicketsJob
	err  error
}

func (n *recordingNotifier) SendTickets(_ context.Context, job queue.SendTicketsJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.jobs = append(n.jobs, job)
	return nil
}

// stallingNotifier accepts the connection but never confirms.
type stallingNotifier struct{}

func (stallingNotifier) SendTickets(ctx context.Context, _ queue.SendTicketsJob) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n *recordingNotifier) count(orderID uint64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, j := range n.jobs {
		if j.OrderID == orderID {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) setErr(err error) {
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
}

type recordingFeed struct {
	mu  sync.Mutex
	got []realtime.CheckIn
}

func (f *recordingFeed) AnnounceCheckIn(_ context.Context, c realtime.CheckIn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, c)
	return nil
}

func ptr[T any](v T) *T { return &v }
