package worker

import (
	"context"
	"log"
	"time"

	"photoledger/internal/metrics"
	"photoledger/internal/services"
)

// Reconciler periodically audits every photographer's ledger against the
// conservation invariant: available + pending + reserved + withdrawn must
// equal the lifetime total of realized line items. A non-zero drift means
// credits were double-counted or lost.
type Reconciler struct {
	Store    services.Store
	Interval time.Duration
	Now      func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.ReconcileOnce(ctx); err != nil {
			log.Printf("reconcile error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReconcileOnce checks every photographer and returns how many ledgers fail
// the conservation check.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	ids, err := r.Store.ListPhotographerIDs(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now()
	mismatches := 0
	for _, id := range ids {
		bal, err := r.Store.Balances(ctx, id, now)
		if err != nil {
			return mismatches, err
		}
		drift := bal.Lifetime - (bal.Available + bal.Pending + bal.Reserved + bal.Withdrawn)
		if drift != 0 {
			mismatches++
			log.Printf("ledger drift: photographer=%s drift=%d available=%d pending=%d reserved=%d withdrawn=%d lifetime=%d",
				id, drift, bal.Available, bal.Pending, bal.Reserved, bal.Withdrawn, bal.Lifetime)
		}
	}

	metrics.ReconcileRuns.Inc()
	metrics.OutOfBalance.Set(float64(mismatches))
	return mismatches, nil
}
