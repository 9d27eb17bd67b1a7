package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/credential"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type stubOrders map[uint64]*model.Order

func (s stubOrders) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	if o, ok := s[id]; ok {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

type stubUsers map[uint64]*model.User

func (s stubUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

type stubTickets map[uint64][]model.IssuedTicket

func (s stubTickets) ListByOrder(_ context.Context, orderID uint64, activeOnly bool) ([]model.IssuedTicket, error) {
	var out []model.IssuedTicket
	for _, t := range s[orderID] {
		if activeOnly && t.Status != model.TicketActive {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type memLogs struct{ rows []model.DeliveryLog }

func (m *memLogs) Append(_ context.Context, l *model.DeliveryLog) error {
	m.rows = append(m.rows, *l)
	return nil
}

type stubDeliverer struct {
	got []Delivery
	err error
}

func (s *stubDeliverer) Name() string { return "stub" }

func (s *stubDeliverer) Deliver(_ context.Context, d Delivery) error {
	s.got = append(s.got, d)
	return s.err
}

func dispatcherFixture() (*Dispatcher, *stubDeliverer, *memLogs, string) {
	active := credential.NewID()
	del := &stubDeliverer{}
	logs := &memLogs{}
	d := &Dispatcher{
		Orders: stubOrders{7: {ID: 7, UserID: 3, EventID: 10, Status: model.OrderPaid}},
		Users:  stubUsers{3: {ID: 3, Email: "guest@example.com"}},
		Tickets: stubTickets{7: {
			{ID: active, OrderID: 7, Status: model.TicketActive},
			{ID: credential.NewID(), OrderID: 7, Status: model.TicketDisabled},
		}},
		Logs:      logs,
		Deliverer: del,
	}
	return d, del, logs, active
}

func TestDispatcherDeliversActiveTokens(t *testing.T) {
	d, del, logs, active := dispatcherFixture()
	require.NoError(t, d.Handle(context.Background(), SendTicketsJob{OrderID: 7}))

	require.Len(t, del.got, 1)
	assert.Equal(t, "guest@example.com", del.got[0].Recipient)
	require.Len(t, del.got[0].Tokens, 1)
	id, err := credential.Parse(del.got[0].Tokens[0])
	require.NoError(t, err)
	assert.Equal(t, active, id)

	require.Len(t, logs.rows, 1)
	assert.Equal(t, model.DeliverySent, logs.rows[0].Status)
	assert.Equal(t, "stub", logs.rows[0].Provider)
	assert.Nil(t, logs.rows[0].Error)
}

func TestDispatcherLogsFailedDelivery(t *testing.T) {
	d, del, logs, _ := dispatcherFixture()
	del.err = errors.New("smtp 421")
	err := d.Handle(context.Background(), SendTicketsJob{OrderID: 7})
	assert.Error(t, err)
	require.Len(t, logs.rows, 1)
	assert.Equal(t, model.DeliveryFailed, logs.rows[0].Status)
	require.NotNil(t, logs.rows[0].Error)
	assert.Equal(t, "smtp 421", *logs.rows[0].Error)
}

func TestDispatcherUnknownOrder(t *testing.T) {
	d, del, logs, _ := dispatcherFixture()
	err := d.Handle(context.Background(), SendTicketsJob{OrderID: 404})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, del.got)
	assert.Empty(t, logs.rows)
}

func TestHandleDeliveryRejectsBadBody(t *testing.T) {
	d, _, _, _ := dispatcherFixture()
	assert.Error(t, handleDelivery(context.Background(), d, []byte("{")))
	assert.Error(t, handleDelivery(context.Background(), d, []byte(`{"order_id":0}`)))
	assert.NoError(t, handleDelivery(context.Background(), d, []byte(`{"order_id":7,"published_at":"2026-01-01T00:00:00Z"}`)))
}

func TestFileDelivererAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := NewFileDeliverer(dir)
	f.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	ctx := context.Background()
	require.NoError(t, f.Deliver(ctx, Delivery{OrderID: 7, EventID: 10, Recipient: "a@b.c", Tokens: []string{"TKT1x", "TKT1y"}}))
	require.NoError(t, f.Deliver(ctx, Delivery{OrderID: 8, EventID: 10, Recipient: "d@e.f", Tokens: []string{"TKT1z"}}))

	raw, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[2026-03-04T05:06:07Z] Tickets sent | order_id=7 | event_id=10 | to="a@b.c" | count=2 | tickets=[TKT1x,TKT1y]`, lines[0])
	assert.Equal(t, "logfile", f.Name())
}
