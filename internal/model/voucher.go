package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discount kinds.
const (
	DiscountFixed      = "fixed"
	DiscountPercentage = "percentage"
)

// Voucher is a discount code.  Codes are stored upper-case so lookups are
// case-insensitive.  DiscountValue is in minor units for fixed vouchers
// and a percentage (possibly fractional) for percentage vouchers.
//
// Nullable fields:
//  MaxDiscountAmount – cap applied to percentage discounts.
//  UsageLimit        – nil means unlimited.
//  ValidFrom/Until   – nil leaves that side of the window open.
//  EventID           – nil means any event.
type Voucher struct {
	ID                uint64          // vouchers.id
	Code              string          // vouchers.code
	DiscountType      string          // vouchers.discount_type
	DiscountValue     decimal.Decimal // vouchers.discount_value
	MaxDiscountAmount *int64          // vouchers.max_discount_amount
	MinOrderAmount    int64           // vouchers.min_order_amount
	UsageLimit        *int64          // vouchers.usage_limit
	UsageCount        int64           // vouchers.usage_count
	ValidFrom         *time.Time      // vouchers.valid_from
	ValidUntil        *time.Time      // vouchers.valid_until
	EventID           *uint64         // vouchers.event_id
	IsActive          bool            // vouchers.is_active
}
