package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// OrderRepo provides access to orders and their items.  The order status
// column is only moved forward through the guarded MarkPaidTx and
// MarkPaidBulkTx updates; no method writes status unconditionally.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the handle so callers can start transactions spanning
// several repositories.
func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = `id, user_id, event_id, total_amount, discount_amount, voucher_id, status, kind, created_at, paid_at, confirmed_by`

func scanOrder(s rowScanner) (*model.Order, error) {
	var (
		o           model.Order
		voucherID   sql.NullInt64
		paidAt      sql.NullTime
		confirmedBy sql.NullInt64
	)
	if err := s.Scan(&o.ID, &o.UserID, &o.EventID, &o.TotalAmount, &o.DiscountAmount, &voucherID,
		&o.Status, &o.Kind, &o.CreatedAt, &paidAt, &confirmedBy); err != nil {
		return nil, err
	}
	o.VoucherID = uint64Ptr(voucherID)
	o.PaidAt = timePtr(paidAt)
	o.ConfirmedBy = uint64Ptr(confirmedBy)
	return &o, nil
}

// GetByID returns the order or ErrNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// Items returns the order's items ordered by id.
func (r *OrderRepo) Items(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, ticket_type_id, quantity, unit_price FROM order_items WHERE order_id = ? ORDER BY id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.OrderItem, 0)
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.TicketTypeID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// InsertTx inserts an order and its items within the provided transaction.
// The generated ids are written back into o and items.  Status, Kind and
// PaidAt are taken from o as given, which lets the invitation flow insert
// an order that is already paid.
func (r *OrderRepo) InsertTx(ctx context.Context, tx *sql.Tx, o *model.Order, items []model.OrderItem) error {
	const q = `INSERT INTO orders (user_id, event_id, total_amount, discount_amount, voucher_id, status, kind, paid_at, confirmed_by)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var paidAt interface{}
	if o.PaidAt != nil {
		paidAt = o.PaidAt.UTC()
	}
	res, err := tx.ExecContext(ctx, q, o.UserID, o.EventID, o.TotalAmount, o.DiscountAmount,
		nullUint64(o.VoucherID), o.Status, o.Kind, paidAt, nullUint64(o.ConfirmedBy))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, ticket_type_id, quantity, unit_price) VALUES `
	args := make([]interface{}, 0, len(items)*4)
	for i := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		items[i].OrderID = o.ID
		args = append(args, o.ID, items[i].TicketTypeID, items[i].Quantity, items[i].UnitPrice)
	}
	res, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	// MySQL reports the id of the first row of a multi-row insert; the rest
	// follow consecutively under the default auto-increment lock mode.
	first, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i := range items {
		items[i].ID = uint64(first) + uint64(i)
	}
	return nil
}

// CreatePending inserts a pending sale order with its items in one
// transaction.
func (r *OrderRepo) CreatePending(ctx context.Context, o *model.Order, items []model.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	o.Status = model.OrderPending
	if o.Kind == "" {
		o.Kind = model.OrderKindSale
	}
	o.PaidAt = nil
	if err := r.InsertTx(ctx, tx, o, items); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// MarkPaidTx moves a single order from pending to paid.  The WHERE clause
// makes the transition happen at most once; false means the order was not
// pending (already settled, failed, expired, or absent).
func (r *OrderRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, orderID uint64, paidAt time.Time, operatorID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = 'paid', paid_at = ?, confirmed_by = ? WHERE id = ? AND status = 'pending'`,
		paidAt.UTC(), operatorID, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LockPendingTx selects, with row locks, which of ids are still pending.
// Locking first lets MarkPaidBulkTx report exactly which orders it moved;
// a plain multi-row UPDATE only returns a count.
func (r *OrderRepo) LockPendingTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return []uint64{}, nil
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM orders WHERE id IN (`+placeholders(len(ids))+`) AND status = 'pending' ORDER BY id FOR UPDATE`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pending := make([]uint64, 0, len(ids))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pending = append(pending, id)
	}
	return pending, rows.Err()
}

// MarkPaidBulkTx is the single conditional update behind bulk
// confirmation.  Rows that are no longer pending are left untouched.
func (r *OrderRepo) MarkPaidBulkTx(ctx context.Context, tx *sql.Tx, ids []uint64, paidAt time.Time, operatorID uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, paidAt.UTC(), operatorID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = 'paid', paid_at = ?, confirmed_by = ? WHERE id IN (`+placeholders(len(ids))+`) AND status = 'pending'`,
		args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
