package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

const defaultReconcileBatch = 100

// ReconcileReport counts what a reconciliation pass did
type ReconcileReport struct {
	Committed int
	Released  int
	Pending   int
	Failed    int
}

// Reconciler resolves reservations held longer than the hold timeout.
// A reservation without a pending transaction is released. One with a pending transaction is
// committed or released according to the chain; a transaction the node doesn't know is only
// released after a second hold timeout has gone by.
type Reconciler struct {
	repo     ports.CooldownRepository
	executor ports.PayoutExecutor
	hold     time.Duration
	batch    int
	now      func() time.Time
}

// NewReconciler returns a Reconciler
func NewReconciler(repo ports.CooldownRepository, executor ports.PayoutExecutor, hold time.Duration) *Reconciler {
	return &Reconciler{
		repo:     repo,
		executor: executor,
		hold:     hold,
		batch:    defaultReconcileBatch,
		now:      time.Now,
	}
}

// Run reconciles every interval until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		report, err := r.ReconcileOnce(ctx)
		if err != nil {
			log.Error(ctx, "reconciling reservations", "err", err)
		} else if report != (ReconcileReport{}) {
			log.Info(ctx, "reservations reconciled", "committed", report.Committed, "released", report.Released,
				"pending", report.Pending, "failed", report.Failed)
		}
		select {
		case <-ctx.Done():
			log.Info(ctx, "reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

// ReconcileOnce runs a single pass over the stale reservations
func (r *Reconciler) ReconcileOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	now := r.now()
	records, err := r.repo.StaleReservations(ctx, now.Add(-r.hold), r.batch)
	if err != nil {
		return report, err
	}
	for i := range records {
		rec := &records[i]
		if err := r.reconcile(ctx, rec, now, &report); err != nil {
			report.Failed++
			log.Error(ctx, "reconciling reservation", "identity", rec.IdentityKey, "err", err)
		}
	}
	return report, nil
}

func (r *Reconciler) reconcile(ctx context.Context, rec *domain.CooldownRecord, now time.Time, report *ReconcileReport) error {
	res := reservationOf(rec)
	ctx = log.With(ctx, "identity", rec.IdentityKey, "reservation", res.ID)

	if rec.PendingTxID == nil {
		log.Info(ctx, "releasing abandoned reservation")
		return r.release(ctx, res, report)
	}

	txID := *rec.PendingTxID
	status, err := r.executor.TransferStatus(ctx, txID)
	if err != nil {
		return err
	}
	switch status {
	case ports.TransferStatusSucceeded:
		log.Info(ctx, "committing reconciled payout", "tx", txID)
		payout := &domain.Payout{
			ID:            uuid.New(),
			IdentityKey:   rec.IdentityKey,
			Username:      rec.Username,
			WalletAddress: res.WalletAddress,
			TxID:          txID,
			AmountWei:     r.executor.Amount().String(),
			IssuedAt:      now,
		}
		if err := r.repo.Commit(ctx, res, payout); err != nil {
			return ignoreLost(err)
		}
		report.Committed++
	case ports.TransferStatusFailed:
		log.Info(ctx, "releasing reservation with failed payout", "tx", txID)
		return r.release(ctx, res, report)
	case ports.TransferStatusNotFound:
		if res.ReservedAt.After(now.Add(-2 * r.hold)) {
			report.Pending++
			return nil
		}
		log.Info(ctx, "releasing reservation with unknown payout", "tx", txID)
		return r.release(ctx, res, report)
	default:
		report.Pending++
	}
	return nil
}

func (r *Reconciler) release(ctx context.Context, res *domain.Reservation, report *ReconcileReport) error {
	if err := r.repo.Release(ctx, res); err != nil {
		return ignoreLost(err)
	}
	report.Released++
	return nil
}

// ignoreLost treats a reservation resolved concurrently by its own request as done
func ignoreLost(err error) error {
	if errors.Is(err, domain.ErrReservationLost) {
		return nil
	}
	return err
}

func reservationOf(rec *domain.CooldownRecord) *domain.Reservation {
	res := &domain.Reservation{
		IdentityKey: rec.IdentityKey,
		Username:    rec.Username,
	}
	if rec.ReservationID != nil {
		res.ID = *rec.ReservationID
	}
	if rec.ReservedAt != nil {
		res.ReservedAt = *rec.ReservedAt
	}
	if rec.PendingWallet != nil {
		res.WalletAddress = *rec.PendingWallet
	}
	return res
}
