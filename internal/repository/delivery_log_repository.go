package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// DeliveryLogRepo appends to delivery_logs.  Rows are never updated or
// deleted; every delivery attempt adds one.
type DeliveryLogRepo struct {
	db *sql.DB
}

// NewDeliveryLogRepo returns a new DeliveryLogRepo bound to the given database.
func NewDeliveryLogRepo(db *sql.DB) *DeliveryLogRepo { return &DeliveryLogRepo{db: db} }

// Append inserts a delivery log row and fills in its id.
func (r *DeliveryLogRepo) Append(ctx context.Context, l *model.DeliveryLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var errText interface{}
	if l.Error != nil {
		errText = *l.Error
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_logs (order_id, recipient, status, provider, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		l.OrderID, l.Recipient, l.Status, l.Provider, errText, l.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// ListByOrder returns the delivery history of an order, oldest first.
func (r *DeliveryLogRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.DeliveryLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, recipient, status, provider, error, created_at FROM delivery_logs WHERE order_id = ? ORDER BY id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DeliveryLog, 0)
	for rows.Next() {
		var (
			l       model.DeliveryLog
			errText sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Recipient, &l.Status, &l.Provider, &errText, &l.CreatedAt); err != nil {
			return nil, err
		}
		if errText.Valid {
			s := errText.String
			l.Error = &s
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
