package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo provides read access to events.  Events are maintained by the
// admin surface; checkout only needs the activation flag and sale window.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// GetByID returns the event with the given id or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT id, title, sale_start, sale_end, is_active, created_at FROM events WHERE id = ?`
	var (
		e          model.Event
		start, end sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Title, &start, &end, &e.IsActive, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.SaleStart = timePtr(start)
	e.SaleEnd = timePtr(end)
	return &e, nil
}
