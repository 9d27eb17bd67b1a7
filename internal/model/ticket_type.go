package model

// Ticket type visibility.  Only public types can be bought through
// checkout; invited types are issued through the invitation flow.
const (
	TicketTypePublic  = "public"
	TicketTypeHidden  = "hidden"
	TicketTypeInvited = "invited"
)

// TicketType is a priced class of ticket belonging to one event.
//
// Fields:
//  ID            – primary key identifier.
//  EventID       – owning event.
//  Name          – display name.
//  Price         – price in minor currency units.
//  QuantityTotal – capacity; nil means unlimited.
//  QuantitySold  – monotonic counter, changed only by the ledger increment.
//  Status        – public, hidden or invited.
type TicketType struct {
	ID            uint64 // ticket_types.id
	EventID       uint64 // ticket_types.event_id
	Name          string // ticket_types.name
	Price         int64  // ticket_types.price
	QuantityTotal *int64 // ticket_types.quantity_total (nullable)
	QuantitySold  int64  // ticket_types.quantity_sold
	Status        string // ticket_types.status
}

// Remaining returns how many units are still displayed as available and
// whether the type is capacity bound at all.  The count is floored at zero
// because the ledger does not reject over-capacity increments by default.
func (t *TicketType) Remaining() (int64, bool) {
	if t.QuantityTotal == nil {
		return 0, false
	}
	left := *t.QuantityTotal - t.QuantitySold
	if left < 0 {
		left = 0
	}
	return left, true
}
