package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Step keys recorded in settlement_steps.
const (
	StepVoucher = "voucher"
)

// IssueStep and DebitStep name the per-item steps of a settlement.
func IssueStep(itemID uint64) string { return fmt.Sprintf("issue:%d", itemID) }
func DebitStep(itemID uint64) string { return fmt.Sprintf("debit:%d", itemID) }

// SettlementRepo coordinates the writes of order settlement across the
// orders, issued_tickets, ticket_types and vouchers tables.
//
// Marking an order paid and writing its settlements marker happen in one
// transaction; that is the commit point.  Each side effect after it runs
// in its own transaction that also claims a (order_id, step) row in
// settlement_steps, so a step applies exactly once no matter how often
// settlement is resumed.  The steps are deliberately not joined into a
// single transaction: a failure in one leaves the order paid and the
// marker open for the reconciler.
type SettlementRepo struct {
	db          *sql.DB
	Orders      *OrderRepo
	TicketTypes *TicketTypeRepo
	Tickets     *IssuedTicketRepo
	Vouchers    *VoucherRepo
}

// NewSettlementRepo wires a SettlementRepo over the given repositories,
// which must share db.
func NewSettlementRepo(db *sql.DB, orders *OrderRepo, types *TicketTypeRepo, tickets *IssuedTicketRepo, vouchers *VoucherRepo) *SettlementRepo {
	if db == nil || orders == nil || types == nil || tickets == nil || vouchers == nil {
		panic("nil dependency passed to NewSettlementRepo")
	}
	return &SettlementRepo{db: db, Orders: orders, TicketTypes: types, Tickets: tickets, Vouchers: vouchers}
}

// GetOrder returns the order or ErrNotFound.
func (r *SettlementRepo) GetOrder(ctx context.Context, id uint64) (*model.Order, error) {
	return r.Orders.GetByID(ctx, id)
}

// OrderItems returns the items of an order.
func (r *SettlementRepo) OrderItems(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	return r.Orders.Items(ctx, orderID)
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func (r *SettlementRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
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
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func insertMarkersTx(ctx context.Context, tx *sql.Tx, orderIDs []uint64, at time.Time) error {
	if len(orderIDs) == 0 {
		return nil
	}
	query := `INSERT INTO settlements (order_id, created_at) VALUES `
	args := make([]interface{}, 0, len(orderIDs)*2)
	for i, id := range orderIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, id, at.UTC())
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarkPaid transitions one order from pending to paid and opens its
// settlement marker.  false, nil means the order was not pending and
// nothing was written.
func (r *SettlementRepo) MarkPaid(ctx context.Context, orderID uint64, paidAt time.Time, operatorID uint64) (bool, error) {
	moved := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := r.Orders.MarkPaidTx(ctx, tx, orderID, paidAt, operatorID)
		if err != nil || !ok {
			return err
		}
		if err := insertMarkersTx(ctx, tx, []uint64{orderID}, paidAt); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// MarkPaidBulk transitions every still-pending order among ids in one
// transaction and returns the ids it moved.  Orders that were already
// paid, failed or expired are skipped silently.
func (r *SettlementRepo) MarkPaidBulk(ctx context.Context, ids []uint64, paidAt time.Time, operatorID uint64) ([]uint64, error) {
	var moved []uint64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		pending, err := r.Orders.LockPendingTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			moved = []uint64{}
			return nil
		}
		n, err := r.Orders.MarkPaidBulkTx(ctx, tx, pending, paidAt, operatorID)
		if err != nil {
			return err
		}
		if n != int64(len(pending)) {
			return fmt.Errorf("bulk mark paid: locked %d pending orders but updated %d: %w", len(pending), n, ErrConflict)
		}
		if err := insertMarkersTx(ctx, tx, pending, paidAt); err != nil {
			return err
		}
		moved = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// CreateInvitation inserts an already-paid invitation order with its
// single item and opens the settlement marker, all in one transaction.
// The ticket type must belong to the order's event, otherwise
// ErrForbidden is returned; an unknown ticket type is ErrNotFound.
func (r *SettlementRepo) CreateInvitation(ctx context.Context, o *model.Order, item *model.OrderItem) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var eventID uint64
		err := tx.QueryRowContext(ctx, `SELECT event_id FROM ticket_types WHERE id = ?`, item.TicketTypeID).Scan(&eventID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if eventID != o.EventID {
			return ErrForbidden
		}
		items := []model.OrderItem{*item}
		if err := r.Orders.InsertTx(ctx, tx, o, items); err != nil {
			return err
		}
		*item = items[0]
		return insertMarkersTx(ctx, tx, []uint64{o.ID}, *o.PaidAt)
	})
}

// claimStepTx records that step is being applied for the order.  The
// primary key on (order_id, step) makes a second claim a no-op; a
// concurrent claimer blocks on the row lock until the first transaction
// finishes and then sees its row.
func claimStepTx(ctx context.Context, tx *sql.Tx, orderID uint64, step string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO settlement_steps (order_id, step, applied_at) VALUES (?, ?, ?)`,
		orderID, step, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// runStep applies fn at most once per (orderID, step).  It returns false
// when the step had already been applied.
func (r *SettlementRepo) runStep(ctx context.Context, orderID uint64, step string, fn func(tx *sql.Tx) error) (bool, error) {
	applied := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		claimed, err := claimStepTx(ctx, tx, orderID, step)
		if err != nil || !claimed {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// IssueTickets inserts the credentials for one order item.  ids must hold
// exactly item.Quantity fresh identifiers.
func (r *SettlementRepo) IssueTickets(ctx context.Context, orderID uint64, item model.OrderItem, ids []string) (bool, error) {
	if len(ids) != item.Quantity {
		return false, fmt.Errorf("issue tickets for item %d: got %d ids for quantity %d", item.ID, len(ids), item.Quantity)
	}
	return r.runStep(ctx, orderID, IssueStep(item.ID), func(tx *sql.Tx) error {
		tickets := make([]model.IssuedTicket, 0, len(ids))
		for _, id := range ids {
			tickets = append(tickets, model.IssuedTicket{
				ID:           id,
				OrderID:      orderID,
				TicketTypeID: item.TicketTypeID,
				Status:       model.TicketActive,
			})
		}
		return r.Tickets.CreateBulkTx(ctx, tx, tickets)
	})
}

// DebitInventory increments quantity_sold for one order item.  With
// capped set the conditional increment is used and ErrCapacityExceeded
// can be returned, in which case the step stays unclaimed.
func (r *SettlementRepo) DebitInventory(ctx context.Context, orderID uint64, item model.OrderItem, capped bool) (bool, error) {
	return r.runStep(ctx, orderID, DebitStep(item.ID), func(tx *sql.Tx) error {
		if capped {
			return r.TicketTypes.IncrementSoldCappedTx(ctx, tx, item.TicketTypeID, item.Quantity)
		}
		return r.TicketTypes.IncrementSoldTx(ctx, tx, item.TicketTypeID, item.Quantity)
	})
}

// CountVoucherUsage increments the voucher's usage_count once per order.
func (r *SettlementRepo) CountVoucherUsage(ctx context.Context, orderID, voucherID uint64, capped bool) (bool, error) {
	return r.runStep(ctx, orderID, StepVoucher, func(tx *sql.Tx) error {
		if capped {
			return r.Vouchers.IncrementUsageCappedTx(ctx, tx, voucherID)
		}
		return r.Vouchers.IncrementUsageTx(ctx, tx, voucherID)
	})
}

// CompleteSettlement closes the marker once every step is applied and the
// notification job was handed to the broker.
func (r *SettlementRepo) CompleteSettlement(ctx context.Context, orderID uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET completed_at = ?, attempts = attempts + 1, last_error = NULL
		 WHERE order_id = ? AND completed_at IS NULL`,
		at.UTC(), orderID)
	return err
}

// RecordSettlementFailure keeps the marker open and stores the latest
// failure for operators reconciling by hand.
func (r *SettlementRepo) RecordSettlementFailure(ctx context.Context, orderID uint64, msg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET attempts = attempts + 1, last_error = ? WHERE order_id = ? AND completed_at IS NULL`,
		msg, orderID)
	return err
}

// IncompleteSettlements lists open markers created at or before the given
// time, oldest first.  Markers that already failed maxAttempts times are
// left for an operator; maxAttempts <= 0 disables that cut-off.
func (r *SettlementRepo) IncompleteSettlements(ctx context.Context, before time.Time, maxAttempts, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT order_id FROM settlements WHERE completed_at IS NULL AND created_at <= ?`
	args := []interface{}{before.UTC()}
	if maxAttempts > 0 {
		q += ` AND attempts < ?`
		args = append(args, maxAttempts)
	}
	q += ` ORDER BY created_at, order_id LIMIT ?`
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
