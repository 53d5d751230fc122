package services

import (
	"context"
	"time"

	"photoledger/internal/metrics"
	"photoledger/internal/models"

	"github.com/google/uuid"
)

type WithdrawalService struct {
	Store     Store
	MinAmount int64
	Now       func() time.Time
}

func (s *WithdrawalService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create opens a withdrawal request. The pending row itself is the
// reservation: the balance query subtracts open withdrawal amounts from
// available, and the check below runs under the photographer's ledger lock,
// so two concurrent requests cannot both pass against the same funds.
func (s *WithdrawalService) Create(ctx context.Context, photographerID string, amount int64, method string, details map[string]string) (*models.Withdrawal, error) {
	if photographerID == "" {
		return nil, ErrMissingPhotographerID
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if amount < s.MinAmount {
		return nil, ErrAmountBelowMinimum
	}
	if method == "" {
		return nil, ErrMissingMethod
	}

	now := s.now()
	w := &models.Withdrawal{
		WithdrawalID:   uuid.NewString(),
		PhotographerID: photographerID,
		Amount:         amount,
		Status:         models.WithdrawalPending,
		Method:         method,
		Details:        details,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.Store.WithLedgerLock(ctx, photographerID, func(tx LedgerTx) error {
		bal, err := tx.Balances(now)
		if err != nil {
			return err
		}
		if amount > bal.Available {
			return ErrInsufficientFunds
		}
		return tx.InsertWithdrawal(w)
	})
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsCreated.Inc()
	return w, nil
}

// Approve moves a pending request to approved. The transaction reference is
// optional here; completion requires one.
func (s *WithdrawalService) Approve(ctx context.Context, withdrawalID, adminRef string) (*models.Withdrawal, error) {
	return s.transition(ctx, withdrawalID, func(w *models.Withdrawal, now time.Time) error {
		if w.Status != models.WithdrawalPending {
			return ErrWithdrawalNotPending
		}
		w.Status = models.WithdrawalApproved
		if adminRef != "" {
			w.AdminRef = &adminRef
		}
		return nil
	}, nil)
}

// Reject moves a pending request to rejected, releasing its reservation.
// A reason is required.
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalID, reason string) (*models.Withdrawal, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.transition(ctx, withdrawalID, func(w *models.Withdrawal, now time.Time) error {
		if w.Status != models.WithdrawalPending {
			return ErrWithdrawalNotPending
		}
		w.Status = models.WithdrawalRejected
		w.RejectReason = &reason
		w.ProcessedAt = &now
		return nil
	}, nil)
}

// Complete settles an approved request: the funding credits are consumed
// oldest first and stamped with this withdrawal's id, and any overshoot on
// the last credit is written back as an immediately-available carryover. The
// transaction reference of the actual payout is required.
func (s *WithdrawalService) Complete(ctx context.Context, withdrawalID, txRef string) (*models.Withdrawal, error) {
	if txRef == "" {
		return nil, ErrTransactionRefRequired
	}
	var amount int64
	w, err := s.transition(ctx, withdrawalID, func(w *models.Withdrawal, now time.Time) error {
		if w.Status != models.WithdrawalApproved {
			return ErrWithdrawalNotApproved
		}
		w.Status = models.WithdrawalCompleted
		w.AdminRef = &txRef
		w.ProcessedAt = &now
		amount = w.Amount
		return nil
	}, func(tx LedgerTx, w *models.Withdrawal, now time.Time) error {
		return s.consumeCredits(tx, w, now)
	})
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsCompleted.Inc()
	metrics.PayoutAmount.Add(float64(amount))
	return w, nil
}

// consumeCredits marks the credits funding w as paid. The reservation held
// since creation guarantees matured unpaid credits cover the amount; a
// shortfall means the ledger is corrupt and aborts the transaction.
func (s *WithdrawalService) consumeCredits(tx LedgerTx, w *models.Withdrawal, now time.Time) error {
	credits, err := tx.ListUnpaidCredits(now)
	if err != nil {
		return err
	}
	var consumed []models.CreditEntry
	var total int64
	for _, c := range credits {
		if total >= w.Amount {
			break
		}
		consumed = append(consumed, c)
		total += c.Amount
	}
	if total < w.Amount {
		return ErrLedgerShortfall
	}
	if err := tx.MarkCreditsPaid(consumed, w.WithdrawalID, now); err != nil {
		return err
	}
	if total > w.Amount {
		return tx.InsertCarryover(&models.Carryover{
			CarryoverID:    uuid.NewString(),
			PhotographerID: w.PhotographerID,
			SourcePayoutID: w.WithdrawalID,
			Amount:         total - w.Amount,
			AvailableAt:    now,
			CreatedAt:      now,
		})
	}
	return nil
}

// Cancel removes a request while still pending. Ownership is checked at the
// authorization boundary; the state guard lives here.
func (s *WithdrawalService) Cancel(ctx context.Context, withdrawalID string) error {
	w, err := s.Store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return err
	}
	return s.Store.WithLedgerLock(ctx, w.PhotographerID, func(tx LedgerTx) error {
		cur, err := tx.GetWithdrawal(withdrawalID)
		if err != nil {
			return err
		}
		if cur.Status != models.WithdrawalPending {
			return ErrWithdrawalNotPending
		}
		return tx.DeleteWithdrawal(withdrawalID)
	})
}

func (s *WithdrawalService) Get(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	return s.Store.GetWithdrawal(ctx, withdrawalID)
}

func (s *WithdrawalService) List(ctx context.Context, photographerID string) ([]*models.Withdrawal, error) {
	if photographerID == "" {
		return nil, ErrMissingPhotographerID
	}
	if _, err := s.Store.GetPhotographer(ctx, photographerID); err != nil {
		return nil, err
	}
	return s.Store.ListWithdrawals(ctx, photographerID)
}

// transition re-reads the withdrawal under its photographer's ledger lock,
// applies mutate, optionally runs extra ledger work in the same transaction,
// and persists the updated row. Status changes are one way; mutate enforces
// the admissible source state.
func (s *WithdrawalService) transition(
	ctx context.Context,
	withdrawalID string,
	mutate func(w *models.Withdrawal, now time.Time) error,
	extra func(tx LedgerTx, w *models.Withdrawal, now time.Time) error,
) (*models.Withdrawal, error) {
	if withdrawalID == "" {
		return nil, ErrWithdrawalNotFound
	}
	ref, err := s.Store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	var out *models.Withdrawal
	err = s.Store.WithLedgerLock(ctx, ref.PhotographerID, func(tx LedgerTx) error {
		w, err := tx.GetWithdrawal(withdrawalID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := mutate(w, now); err != nil {
			return err
		}
		w.UpdatedAt = now
		if extra != nil {
			if err := extra(tx, w, now); err != nil {
				return err
			}
		}
		if err := tx.UpdateWithdrawal(w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
