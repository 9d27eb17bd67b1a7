package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// VoucherRepo reads vouchers and owns the usage counter.  usage_count is
// incremented independently of order settlement; see IncrementUsageTx.
type VoucherRepo struct {
	db *sql.DB
}

// NewVoucherRepo returns a new VoucherRepo bound to the given database.
func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

// NormalizeCode is the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetByCode looks a voucher up by its normalized code.  ErrNotFound is
// returned for unknown codes.
func (r *VoucherRepo) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	const q = `SELECT id, code, discount_type, discount_value, max_discount_amount, min_order_amount,
	                  usage_limit, usage_count, valid_from, valid_until, event_id, is_active
	           FROM vouchers WHERE code = ?`
	var (
		v           model.Voucher
		value       string
		maxDiscount sql.NullInt64
		limit       sql.NullInt64
		from, until sql.NullTime
		eventID     sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, NormalizeCode(code)).Scan(
		&v.ID, &v.Code, &v.DiscountType, &value, &maxDiscount, &v.MinOrderAmount,
		&limit, &v.UsageCount, &from, &until, &eventID, &v.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.DiscountValue, err = decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	v.MaxDiscountAmount = int64Ptr(maxDiscount)
	v.UsageLimit = int64Ptr(limit)
	v.ValidFrom = timePtr(from)
	v.ValidUntil = timePtr(until)
	v.EventID = uint64Ptr(eventID)
	return &v, nil
}

// IncrementUsageTx bumps usage_count by one without consulting
// usage_limit.  Settlement treats a failure here as a warning only.
func (r *VoucherRepo) IncrementUsageTx(ctx context.Context, tx *sql.Tx, voucherID uint64) error {
	res, err := tx.ExecContext(ctx, `UPDATE vouchers SET usage_count = usage_count + 1 WHERE id = ?`, voucherID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsageCappedTx only matches while usage_count is below
// usage_limit.  A miss on an existing voucher is ErrUsageExhausted.
func (r *VoucherRepo) IncrementUsageCappedTx(ctx context.Context, tx *sql.Tx, voucherID uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE vouchers SET usage_count = usage_count + 1
		 WHERE id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)`, voucherID)
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
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM vouchers WHERE id = ?`, voucherID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrUsageExhausted
}
