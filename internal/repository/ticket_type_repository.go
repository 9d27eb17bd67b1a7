package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketTypeRepo is the inventory ledger.  quantity_sold is only ever
// changed through IncrementSoldTx or IncrementSoldCappedTx, each a single
// UPDATE statement evaluated by the database, never a read-modify-write
// from application memory.
type TicketTypeRepo struct {
	db *sql.DB
}

// NewTicketTypeRepo returns a new TicketTypeRepo bound to the given database.
func NewTicketTypeRepo(db *sql.DB) *TicketTypeRepo { return &TicketTypeRepo{db: db} }

const ticketTypeColumns = `id, event_id, name, price, quantity_total, quantity_sold, status`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicketType(s rowScanner) (*model.TicketType, error) {
	var (
		t     model.TicketType
		total sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.EventID, &t.Name, &t.Price, &total, &t.QuantitySold, &t.Status); err != nil {
		return nil, err
	}
	t.QuantityTotal = int64Ptr(total)
	return &t, nil
}

// GetByID returns a ticket type or ErrNotFound.
func (r *TicketTypeRepo) GetByID(ctx context.Context, id uint64) (*model.TicketType, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ?`, id)
	t, err := scanTicketType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListByEvent returns every ticket type of an event ordered by id.  An
// event without ticket types yields an empty slice.
func (r *TicketTypeRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TicketType, 0)
	for rows.Next() {
		t, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// IncrementSoldTx adds qty to quantity_sold in one statement.  It does not
// look at quantity_total: two settlements racing for the last unit both
// succeed.  Capacity is enforced upstream by checkout's clamp only.
// ErrNotFound is returned when the ticket type does not exist.
func (r *TicketTypeRepo) IncrementSoldTx(ctx context.Context, tx *sql.Tx, ticketTypeID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ticket_types SET quantity_sold = quantity_sold + ? WHERE id = ?`,
		qty, ticketTypeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementSoldCappedTx is the conditional form of IncrementSoldTx: the
// row only matches while the post-increment value stays within
// quantity_total.  A miss is reported as ErrCapacityExceeded (or
// ErrNotFound when the row is absent).
func (r *TicketTypeRepo) IncrementSoldCappedTx(ctx context.Context, tx *sql.Tx, ticketTypeID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ticket_types SET quantity_sold = quantity_sold + ?
		 WHERE id = ? AND (quantity_total IS NULL OR quantity_sold + ? <= quantity_total)`,
		qty, ticketTypeID, qty)
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
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM ticket_types WHERE id = ?`, ticketTypeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrCapacityExceeded
}
