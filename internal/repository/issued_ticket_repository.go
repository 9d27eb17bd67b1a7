package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// IssuedTicketRepo stores credentials.  Rows are inserted only by
// settlement.  The is_used flag is written exclusively by Redeem, whose
// WHERE is_used = 0 guard is the compare-and-swap that keeps a credential
// from being redeemed twice by gates scanning at the same moment.
type IssuedTicketRepo struct {
	db *sql.DB
}

// NewIssuedTicketRepo returns a new IssuedTicketRepo bound to the given database.
func NewIssuedTicketRepo(db *sql.DB) *IssuedTicketRepo { return &IssuedTicketRepo{db: db} }

// bulkInsertRows caps the rows of one multi-row INSERT.  Four
// placeholders per row keeps a statement far below MySQL's 65535 limit.
var bulkInsertRows = 1000

// CreateBulkTx inserts credentials inside the provided transaction, in
// statements of at most bulkInsertRows rows.  Passing an empty slice has
// no effect.  A duplicate id is reported as ErrConflict.
func (r *IssuedTicketRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, tickets []model.IssuedTicket) error {
	for len(tickets) > 0 {
		n := min(len(tickets), bulkInsertRows)
		if err := insertTickets(ctx, tx, tickets[:n]); err != nil {
			return err
		}
		tickets = tickets[n:]
	}
	return nil
}

func insertTickets(ctx context.Context, tx *sql.Tx, tickets []model.IssuedTicket) error {
	query := `INSERT INTO issued_tickets (id, order_id, ticket_type_id, is_used, status) VALUES `
	args := make([]interface{}, 0, len(tickets)*4)
	for i, t := range tickets {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, 0, ?)"
		status := t.Status
		if status == "" {
			status = model.TicketActive
		}
		args = append(args, t.ID, t.OrderID, t.TicketTypeID, status)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetView loads a credential together with its order's event and owner
// and the ticket type name.  ErrNotFound is returned for unknown ids.
func (r *IssuedTicketRepo) GetView(ctx context.Context, id string) (*model.TicketView, error) {
	const q = `SELECT it.id, it.order_id, it.ticket_type_id, it.is_used, it.used_at, it.checked_in_by, it.status, it.created_at,
	                  o.event_id, o.user_id, tt.name
	           FROM issued_tickets it
	           JOIN orders o ON o.id = it.order_id
	           JOIN ticket_types tt ON tt.id = it.ticket_type_id
	           WHERE it.id = ?`
	var (
		v      model.TicketView
		usedAt sql.NullTime
		by     sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&v.ID, &v.OrderID, &v.TicketTypeID, &v.IsUsed, &usedAt, &by, &v.Status, &v.CreatedAt,
		&v.EventID, &v.UserID, &v.TicketTypeName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.UsedAt = timePtr(usedAt)
	v.CheckedInBy = uint64Ptr(by)
	return &v, nil
}

// ListByOrder returns all credentials of an order, optionally restricted
// to active ones, ordered by creation.
func (r *IssuedTicketRepo) ListByOrder(ctx context.Context, orderID uint64, activeOnly bool) ([]model.IssuedTicket, error) {
	q := `SELECT id, order_id, ticket_type_id, is_used, used_at, checked_in_by, status, created_at
	      FROM issued_tickets WHERE order_id = ?`
	if activeOnly {
		q += ` AND status = 'active'`
	}
	q += ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.IssuedTicket, 0)
	for rows.Next() {
		var (
			t      model.IssuedTicket
			usedAt sql.NullTime
			by     sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.TicketTypeID, &t.IsUsed, &usedAt, &by, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.UsedAt = timePtr(usedAt)
		t.CheckedInBy = uint64Ptr(by)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Redeem marks a credential used.  The update only matches an active row
// that is not yet used; false means another redemption won the race, the
// credential was disabled in the meantime, or it does not exist.  Callers
// must not treat false as success and should look the credential up again.
func (r *IssuedTicketRepo) Redeem(ctx context.Context, id string, staffID uint64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE issued_tickets SET is_used = 1, used_at = ?, checked_in_by = ?
		 WHERE id = ? AND is_used = 0 AND status = 'active'`,
		at.UTC(), staffID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetStatus enables or disables a credential.  The driver reports rows
// changed rather than rows matched, so an update that leaves the status
// as it was is followed by an existence check before ErrNotFound is
// returned.
func (r *IssuedTicketRepo) SetStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE issued_tickets SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM issued_tickets WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
