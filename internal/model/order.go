package model

import "time"

// Order statuses.  Settlement moves an order from pending to paid exactly
// once; failed and expired are set by timeout jobs outside this service.
const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
	OrderExpired = "expired"
)

// Order kinds.
const (
	OrderKindSale       = "sale"
	OrderKindInvitation = "invitation"
)

// Order records a customer's request for tickets across one or more
// ticket types of a single event.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – customer that owns the order and receives the tickets.
//  EventID        – event the tickets belong to.
//  TotalAmount    – amount due after discount, in minor units.
//  DiscountAmount – discount applied at checkout.
//  VoucherID      – applied voucher, if any.
//  Status         – pending, paid, failed or expired.
//  Kind           – sale or invitation.
//  CreatedAt      – creation timestamp.
//  PaidAt         – set when the order is marked paid.
//  ConfirmedBy    – operator who confirmed payment.
type Order struct {
	ID             uint64     // orders.id
	UserID         uint64     // orders.user_id
	EventID        uint64     // orders.event_id
	TotalAmount    int64      // orders.total_amount
	DiscountAmount int64      // orders.discount_amount
	VoucherID      *uint64    // orders.voucher_id (nullable)
	Status         string     // orders.status
	Kind           string     // orders.kind
	CreatedAt      time.Time  // orders.created_at
	PaidAt         *time.Time // orders.paid_at (nullable)
	ConfirmedBy    *uint64    // orders.confirmed_by (nullable)
}

// OrderItem is one line of an order.  UnitPrice is the ticket type price
// at the moment the order was created and never follows later changes.
type OrderItem struct {
	ID           uint64 // order_items.id
	OrderID      uint64 // order_items.order_id
	TicketTypeID uint64 // order_items.ticket_type_id
	Quantity     int    // order_items.quantity
	UnitPrice    int64  // order_items.unit_price
}
