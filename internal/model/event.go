package model

import "time"

// Event is a ticketed occasion.  The sale window bounds when checkout may
// create orders; a nil bound leaves that side of the window open.
// Settlement only reads events, it never changes them.
type Event struct {
	ID        uint64     // events.id
	Title     string     // events.title
	SaleStart *time.Time // events.sale_start (nullable)
	SaleEnd   *time.Time // events.sale_end (nullable)
	IsActive  bool       // events.is_active
	CreatedAt time.Time  // events.created_at
}

// SaleOpen reports whether the event is active and now falls within its
// sale window.  Both bounds are inclusive.
func (e *Event) SaleOpen(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.SaleStart != nil && now.Before(*e.SaleStart) {
		return false
	}
	if e.SaleEnd != nil && now.After(*e.SaleEnd) {
		return false
	}
	return true
}
