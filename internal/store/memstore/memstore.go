// Package memstore is an in-memory services.Store used by tests and local
// development. The single mutex stands in for the database's per-photographer
// row lock, so ledger callbacks are serialized the same way.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"photoledger/internal/models"
	"photoledger/internal/services"
)

type Store struct {
	mu            sync.Mutex
	photographers map[string]*models.Photographer
	orders        map[string]*models.Order
	items         map[string]*models.OrderItem
	carryovers    map[string]*models.Carryover
	withdrawals   map[string]*models.Withdrawal
	events        map[string]*models.PaymentEvent
}

var _ services.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		photographers: make(map[string]*models.Photographer),
		orders:        make(map[string]*models.Order),
		items:         make(map[string]*models.OrderItem),
		carryovers:    make(map[string]*models.Carryover),
		withdrawals:   make(map[string]*models.Withdrawal),
		events:        make(map[string]*models.PaymentEvent),
	}
}

func (s *Store) CreatePhotographer(_ context.Context, p *models.Photographer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.photographers[p.PhotographerID] = &cp
	return nil
}

func (s *Store) GetPhotographer(_ context.Context, photographerID string) (*models.Photographer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photographers[photographerID]
	if !ok {
		return nil, services.ErrPhotographerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListPhotographerIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, len(s.photographers))
	for id, p := range s.photographers {
		entries = append(entries, entry{id: id, at: p.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (s *Store) CreateOrder(_ context.Context, order *models.Order, items []*models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	co := *order
	s.orders[order.OrderID] = &co
	for _, it := range items {
		ci := *it
		s.items[it.ItemID] = &ci
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	co := *o
	return &co, nil
}

func (s *Store) ListOrderItems(_ context.Context, orderID string) ([]*models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OrderItem
	for _, it := range s.items {
		if it.OrderID == orderID {
			ci := *it
			out = append(out, &ci)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CompleteOrder(_ context.Context, ev *models.PaymentEvent, completedAt time.Time, splits []models.ItemSplit) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ProviderTxID]; ok {
		return false, 0, nil
	}
	o, ok := s.orders[ev.OrderID]
	if !ok || o.Status != models.OrderPending {
		return true, 0, nil
	}

	ce := *ev
	s.events[ev.ProviderTxID] = &ce
	o.Status = models.OrderCompleted
	ref := ev.ProviderTxID
	o.ProviderRef = &ref
	at := completedAt
	o.CompletedAt = &at
	o.UpdatedAt = completedAt

	for _, sp := range splits {
		it, ok := s.items[sp.ItemID]
		if !ok {
			continue
		}
		amount := sp.PhotographerAmount
		fee := sp.PlatformFee
		bps := sp.CommissionBps
		availableAt := sp.AvailableAt
		it.PhotographerAmount = &amount
		it.PlatformFee = &fee
		it.CommissionBps = &bps
		it.AvailableAt = &availableAt
	}
	return true, 1, nil
}

func (s *Store) SetOrderStatus(_ context.Context, orderID string, status models.OrderStatus, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != models.OrderPending {
		return 0, nil
	}
	o.Status = status
	o.UpdatedAt = at
	return 1, nil
}

func (s *Store) Balances(_ context.Context, photographerID string, now time.Time) (models.BalanceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balancesLocked(photographerID, now), nil
}

func (s *Store) balancesLocked(photographerID string, now time.Time) models.BalanceSummary {
	var bal models.BalanceSummary
	var matured int64
	for _, e := range s.creditsLocked(photographerID) {
		bal.Lifetime += e.lifetime
		if e.paid {
			continue
		}
		if !e.availableAt.After(now) {
			matured += e.amount
		} else {
			bal.Pending += e.amount
		}
	}
	for _, w := range s.withdrawals {
		if w.PhotographerID != photographerID {
			continue
		}
		switch w.Status {
		case models.WithdrawalPending, models.WithdrawalApproved:
			bal.Reserved += w.Amount
		case models.WithdrawalCompleted:
			bal.Withdrawn += w.Amount
		}
	}
	bal.Available = matured - bal.Reserved
	return bal
}

type memCredit struct {
	kind        models.CreditKind
	id          string
	amount      int64
	lifetime    int64
	availableAt time.Time
	createdAt   time.Time
	paid        bool
}

func (s *Store) creditsLocked(photographerID string) []memCredit {
	var out []memCredit
	for _, it := range s.items {
		if it.PhotographerID != photographerID {
			continue
		}
		o, ok := s.orders[it.OrderID]
		if !ok || o.Status != models.OrderCompleted || it.PhotographerAmount == nil || it.AvailableAt == nil {
			continue
		}
		out = append(out, memCredit{
			kind:        models.CreditSale,
			id:          it.ItemID,
			amount:      *it.PhotographerAmount,
			lifetime:    *it.PhotographerAmount,
			availableAt: *it.AvailableAt,
			createdAt:   it.CreatedAt,
			paid:        it.Paid,
		})
	}
	for _, co := range s.carryovers {
		if co.PhotographerID != photographerID {
			continue
		}
		out = append(out, memCredit{
			kind:        models.CreditCarryover,
			id:          co.CarryoverID,
			amount:      co.Amount,
			availableAt: co.AvailableAt,
			createdAt:   co.CreatedAt,
			paid:        co.Paid,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].availableAt.Equal(out[j].availableAt) {
			return out[i].availableAt.Before(out[j].availableAt)
		}
		if !out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].createdAt.Before(out[j].createdAt)
		}
		return out[i].id < out[j].id
	})
	return out
}

func (s *Store) GetWithdrawal(_ context.Context, withdrawalID string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getWithdrawalLocked(withdrawalID)
}

func (s *Store) getWithdrawalLocked(withdrawalID string) (*models.Withdrawal, error) {
	w, ok := s.withdrawals[withdrawalID]
	if !ok {
		return nil, services.ErrWithdrawalNotFound
	}
	cw := *w
	return &cw, nil
}

func (s *Store) ListWithdrawals(_ context.Context, photographerID string) ([]*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Withdrawal
	for _, w := range s.withdrawals {
		if w.PhotographerID == photographerID {
			cw := *w
			out = append(out, &cw)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].WithdrawalID < out[j].WithdrawalID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) WithLedgerLock(_ context.Context, photographerID string, fn func(services.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photographers[photographerID]; !ok {
		return services.ErrPhotographerNotFound
	}
	return fn(&ledgerTx{store: s, photographerID: photographerID})
}

type ledgerTx struct {
	store          *Store
	photographerID string
}

func (l *ledgerTx) Balances(now time.Time) (models.BalanceSummary, error) {
	return l.store.balancesLocked(l.photographerID, now), nil
}

func (l *ledgerTx) GetWithdrawal(withdrawalID string) (*models.Withdrawal, error) {
	return l.store.getWithdrawalLocked(withdrawalID)
}

func (l *ledgerTx) InsertWithdrawal(w *models.Withdrawal) error {
	cw := *w
	l.store.withdrawals[w.WithdrawalID] = &cw
	return nil
}

func (l *ledgerTx) UpdateWithdrawal(w *models.Withdrawal) error {
	if _, ok := l.store.withdrawals[w.WithdrawalID]; !ok {
		return services.ErrWithdrawalNotFound
	}
	cw := *w
	l.store.withdrawals[w.WithdrawalID] = &cw
	return nil
}

func (l *ledgerTx) DeleteWithdrawal(withdrawalID string) error {
	if _, ok := l.store.withdrawals[withdrawalID]; !ok {
		return services.ErrWithdrawalNotFound
	}
	delete(l.store.withdrawals, withdrawalID)
	return nil
}

func (l *ledgerTx) ListUnpaidCredits(now time.Time) ([]models.CreditEntry, error) {
	var out []models.CreditEntry
	for _, c := range l.store.creditsLocked(l.photographerID) {
		if c.paid || c.availableAt.After(now) {
			continue
		}
		out = append(out, models.CreditEntry{
			Kind:        c.kind,
			ID:          c.id,
			Amount:      c.amount,
			AvailableAt: c.availableAt,
		})
	}
	return out, nil
}

func (l *ledgerTx) MarkCreditsPaid(entries []models.CreditEntry, payoutID string, at time.Time) error {
	for _, e := range entries {
		switch e.Kind {
		case models.CreditSale:
			it, ok := l.store.items[e.ID]
			if !ok {
				return services.ErrOrderNotFound
			}
			it.Paid = true
			paidAt := at
			it.PaidAt = &paidAt
			pid := payoutID
			it.PayoutID = &pid
		case models.CreditCarryover:
			co, ok := l.store.carryovers[e.ID]
			if !ok {
				return services.ErrWithdrawalNotFound
			}
			co.Paid = true
			paidAt := at
			co.PaidAt = &paidAt
			pid := payoutID
			co.PayoutID = &pid
		}
	}
	return nil
}

func (l *ledgerTx) InsertCarryover(c *models.Carryover) error {
	cc := *c
	l.store.carryovers[c.CarryoverID] = &cc
	return nil
}
