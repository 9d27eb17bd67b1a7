package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Decision is the outcome of evaluating a voucher against an order amount.
// On rejection only Reason and Message are meaningful.
type Decision struct {
	Accepted    bool           `json:"accepted"`
	Reason      Reason         `json:"result"`
	Message     string         `json:"message,omitempty"`
	Voucher     *model.Voucher `json:"-"`
	Discount    int64          `json:"discount_amount"`
	FinalAmount int64          `json:"final_amount"`
}

func reject(r Reason, msg string) Decision {
	return Decision{Reason: r, Message: msg}
}

var hundred = decimal.NewFromInt(100)

// EvaluateVoucher decides whether v applies to an order of amount for
// eventID at time now.  It has no side effects.  The checks run in a fixed
// order and the first failure wins.  A nil voucher is CODE_NOT_FOUND.
//
// amount must be positive; ErrInvalidAmount is returned otherwise.
func EvaluateVoucher(v *model.Voucher, amount int64, eventID uint64, now time.Time) (Decision, error) {
	if amount <= 0 {
		return Decision{}, ErrInvalidAmount
	}
	switch {
	case v == nil:
		return reject(ReasonCodeNotFound, "voucher code not found"), nil
	case !v.IsActive:
		return reject(ReasonVoucherDisabled, "voucher is disabled"), nil
	case v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit:
		return reject(ReasonUsageExhausted, "voucher usage limit reached"), nil
	case amount < v.MinOrderAmount:
		return reject(ReasonBelowMinimum, fmt.Sprintf("order amount must be at least %d", v.MinOrderAmount)), nil
	case v.ValidFrom != nil && now.Before(*v.ValidFrom), v.ValidUntil != nil && now.After(*v.ValidUntil):
		return reject(ReasonOutOfWindow, "voucher is not valid at this time"), nil
	case v.EventID != nil && *v.EventID != eventID:
		return reject(ReasonWrongEvent, "voucher does not apply to this event"), nil
	}

	discount := discountFor(v, amount)
	return Decision{
		Accepted:    true,
		Reason:      ReasonValid,
		Voucher:     v,
		Discount:    discount,
		FinalAmount: amount - discount,
	}, nil
}

// discountFor computes the raw discount, applies the voucher cap for
// percentages and never exceeds the order amount.
func discountFor(v *model.Voucher, amount int64) int64 {
	var d int64
	switch v.DiscountType {
	case model.DiscountPercentage:
		d = decimal.NewFromInt(amount).Mul(v.DiscountValue).Div(hundred).Floor().IntPart()
		if v.MaxDiscountAmount != nil && d > *v.MaxDiscountAmount {
			d = *v.MaxDiscountAmount
		}
	default:
		d = v.DiscountValue.Floor().IntPart()
	}
	if d < 0 {
		d = 0
	}
	if d > amount {
		d = amount
	}
	return d
}

// VoucherReader is the part of the voucher repository validation needs.
type VoucherReader interface {
	GetByCode(ctx context.Context, code string) (*model.Voucher, error)
}

// VoucherService validates voucher codes.  It never consumes usage;
// usage is counted once by settlement.
type VoucherService struct {
	vouchers VoucherReader
	now      func() time.Time
}

func NewVoucherService(vouchers VoucherReader) *VoucherService {
	return &VoucherService{vouchers: vouchers, now: time.Now}
}

// Validate normalizes code, looks the voucher up and evaluates it.
func (s *VoucherService) Validate(ctx context.Context, code string, amount int64, eventID uint64) (Decision, error) {
	code = repository.NormalizeCode(code)
	var v *model.Voucher
	if code != "" {
		var err error
		v, err = s.vouchers.GetByCode(ctx, code)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return Decision{}, fmt.Errorf("load voucher: %w", err)
		}
	}
	d, err := EvaluateVoucher(v, amount, eventID, s.now())
	if err != nil {
		return d, err
	}
	monitoring.RecordVoucherValidation(string(d.Reason))
	return d, nil
}
