package services

import (
	"context"
	"time"

	"photoledger/internal/models"
)

// Store is the persistence contract the services run against. Implementations
// must return the sentinel not-found errors from this package.
type Store interface {
	CreatePhotographer(ctx context.Context, p *models.Photographer) error
	GetPhotographer(ctx context.Context, photographerID string) (*models.Photographer, error)
	ListPhotographerIDs(ctx context.Context) ([]string, error)

	CreateOrder(ctx context.Context, order *models.Order, items []*models.OrderItem) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrderItems(ctx context.Context, orderID string) ([]*models.OrderItem, error)

	// CompleteOrder atomically records the payment event, transitions the
	// order from pending to completed, and persists the item splits.
	// inserted is false when the provider transaction id was already
	// processed; updated is the number of orders transitioned (0 when the
	// order was not pending, in which case nothing is persisted).
	CompleteOrder(ctx context.Context, ev *models.PaymentEvent, completedAt time.Time, splits []models.ItemSplit) (inserted bool, updated int64, err error)

	// SetOrderStatus transitions a pending order to a terminal status and
	// reports how many rows changed.
	SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) (int64, error)

	Balances(ctx context.Context, photographerID string, now time.Time) (models.BalanceSummary, error)

	GetWithdrawal(ctx context.Context, withdrawalID string) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, photographerID string) ([]*models.Withdrawal, error)

	// WithLedgerLock runs fn while holding an exclusive lock on the
	// photographer's ledger, so balance checks and withdrawal mutations are
	// linearized per photographer. fn's writes are committed only if it
	// returns nil. Implementations retry serialization conflicts and return
	// ErrConflict once retries are exhausted.
	WithLedgerLock(ctx context.Context, photographerID string, fn func(LedgerTx) error) error
}

// LedgerTx is the transactional view of one photographer's ledger, valid only
// inside a WithLedgerLock callback.
type LedgerTx interface {
	Balances(now time.Time) (models.BalanceSummary, error)
	GetWithdrawal(withdrawalID string) (*models.Withdrawal, error)
	InsertWithdrawal(w *models.Withdrawal) error
	UpdateWithdrawal(w *models.Withdrawal) error
	DeleteWithdrawal(withdrawalID string) error

	// ListUnpaidCredits returns unpaid credits whose availability timestamp
	// has passed, oldest first.
	ListUnpaidCredits(now time.Time) ([]models.CreditEntry, error)
	MarkCreditsPaid(entries []models.CreditEntry, payoutID string, at time.Time) error
	InsertCarryover(c *models.Carryover) error
}
