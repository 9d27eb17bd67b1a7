package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/event-ticketing/internal/monitoring"
)

// ReconcileOptions tune the sweep.
type ReconcileOptions struct {
	Interval    time.Duration
	Grace       time.Duration
	Batch       int
	MaxAttempts int
}

// Reconciler resumes settlements whose side effects did not all complete,
// for example because the process died after the commit point or the
// broker was down.  Only markers older than Grace are picked up so a
// settlement still running in a request is left alone.
type Reconciler struct {
	settler *Settler
	opts    ReconcileOptions
	log     *slog.Logger
}

func NewReconciler(settler *Settler, opts ReconcileOptions, logger *slog.Logger) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{settler: settler, opts: opts, log: logger.With("component", "reconciler")}
}

// RunOnce sweeps one batch and returns how many settlements completed.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	before := r.settler.now().Add(-r.opts.Grace)
	ids, err := r.settler.store.IncompleteSettlements(ctx, before, r.opts.MaxAttempts, r.opts.Batch)
	if err != nil {
		return 0, fmt.Errorf("list incomplete settlements: %w", err)
	}
	monitoring.RecordReconcileResumed(len(ids))
	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res, err := r.settler.Fulfil(ctx, id)
		if err != nil {
			r.log.Warn("resume settlement", "order_id", id, "err", err)
			continue
		}
		if res.Completed {
			done++
		}
	}
	return done, nil
}

// Run sweeps every Interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Error("reconcile sweep", "err", err)
				continue
			}
			if n > 0 {
				r.log.Info("reconciled settlements", "completed", n)
			}
		}
	}
}
