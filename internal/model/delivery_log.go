package model

import "time"

// Delivery outcomes recorded by the notification dispatcher.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// DeliveryLog is one append-only row describing an attempt to deliver an
// order's tickets to its owner.
type DeliveryLog struct {
	ID        uint64    // delivery_logs.id
	OrderID   uint64    // delivery_logs.order_id
	Recipient string    // delivery_logs.recipient
	Status    string    // delivery_logs.status
	Provider  string    // delivery_logs.provider
	Error     *string   // delivery_logs.error (nullable)
	CreatedAt time.Time // delivery_logs.created_at
}
