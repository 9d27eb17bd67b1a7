package model

import "time"

// Credential statuses.
const (
	TicketActive   = "active"
	TicketDisabled = "disabled"
)

// IssuedTicket is a single redeemable credential produced by settlement.
// The ID doubles as the redemption secret.  IsUsed moves from false to
// true exactly once; UsedAt and CheckedInBy are set only when it does.
type IssuedTicket struct {
	ID           string     // issued_tickets.id (UUID)
	OrderID      uint64     // issued_tickets.order_id
	TicketTypeID uint64     // issued_tickets.ticket_type_id
	IsUsed       bool       // issued_tickets.is_used
	UsedAt       *time.Time // issued_tickets.used_at (nullable)
	CheckedInBy  *uint64    // issued_tickets.checked_in_by (nullable)
	Status       string     // issued_tickets.status
	CreatedAt    time.Time  // issued_tickets.created_at
}

// TicketView joins a credential with the order and ticket type data the
// door staff need to see while scanning.
type TicketView struct {
	IssuedTicket
	EventID        uint64 // orders.event_id
	UserID         uint64 // orders.user_id
	TicketTypeName string // ticket_types.name
}
