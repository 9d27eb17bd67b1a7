package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/event-ticketing/internal/monitoring"
)

// BulkResult reports a bulk confirmation.  Settled holds one result per
// order that moved from pending to paid; Skipped lists the requested ids
// that were not pending.
type BulkResult struct {
	Settled []*SettlementResult `json:"settled"`
	Skipped []uint64            `json:"skipped"`
}

// BulkSettler confirms many orders at once.  The pending to paid
// transition of the whole batch is one guarded statement; fulfilment then
// runs order by order with a pause between them so the broker and the mail
// provider are not flooded.
type BulkSettler struct {
	settler  *Settler
	delay    time.Duration
	maxBatch int
	sleep    func(context.Context, time.Duration)
}

func NewBulkSettler(settler *Settler, delay time.Duration, maxBatch int) *BulkSettler {
	if settler == nil {
		panic("nil settler passed to NewBulkSettler")
	}
	return &BulkSettler{settler: settler, delay: delay, maxBatch: maxBatch, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// SettleBulk confirms orderIDs.  Duplicates are collapsed.  A failure in
// one order's side effects is reported in its result and does not stop
// the others.
func (b *BulkSettler) SettleBulk(ctx context.Context, orderIDs []uint64, operatorID uint64) (*BulkResult, error) {
	ids := dedupe(orderIDs)
	if b.maxBatch > 0 && len(ids) > b.maxBatch {
		return nil, fmt.Errorf("%d orders, limit %d: %w", len(ids), b.maxBatch, ErrBatchTooLarge)
	}
	res := &BulkResult{Settled: []*SettlementResult{}, Skipped: []uint64{}}
	if len(ids) == 0 {
		return res, nil
	}

	moved, err := b.settler.store.MarkPaidBulk(ctx, ids, b.settler.now(), operatorID)
	if err != nil {
		monitoring.RecordSettlement("error")
		return nil, fmt.Errorf("bulk mark paid: %w", err)
	}
	movedSet := make(map[uint64]struct{}, len(moved))
	for _, id := range moved {
		movedSet[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := movedSet[id]; !ok {
			res.Skipped = append(res.Skipped, id)
			monitoring.RecordSettlement("skipped")
		}
	}

	ctx = context.WithoutCancel(ctx)
	for i, id := range moved {
		if i > 0 {
			b.sleep(ctx, b.delay)
		}
		r, err := b.settler.Fulfil(ctx, id)
		if err != nil {
			b.settler.log.Warn("bulk fulfil failed", "order_id", id, "err", err)
			r = &SettlementResult{OrderID: id, IssuedTicketIDs: []string{}, Warnings: []Warning{{Step: StepLoad, Message: err.Error()}}}
		}
		res.Settled = append(res.Settled, r)
	}
	return res, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
