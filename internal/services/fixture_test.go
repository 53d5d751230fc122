package services_test

import (
	"context"
	"testing"
	"time"

	"photoledger/internal/models"
	"photoledger/internal/services"
	"photoledger/internal/store/memstore"

	"github.com/google/uuid"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store         *memstore.Store
	clock         *fakeClock
	photographers *services.PhotographerService
	orders        *services.OrderService
	balances      *services.BalanceService
	withdrawals   *services.WithdrawalService
}

const holdPeriod = 30 * 24 * time.Hour

func newFixture() *fixture {
	st := memstore.New()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return &fixture{
		store: st,
		clock: clock,
		photographers: &services.PhotographerService{
			Store:      st,
			DefaultBps: 2000,
			Now:        clock.Now,
		},
		orders: &services.OrderService{
			Store:      st,
			HoldPeriod: holdPeriod,
			Now:        clock.Now,
		},
		balances: &services.BalanceService{Store: st, Now: clock.Now},
		withdrawals: &services.WithdrawalService{
			Store:     st,
			MinAmount: 10000,
			Now:       clock.Now,
		},
	}
}

func (fx *fixture) registerPhotographer(t *testing.T) string {
	t.Helper()
	p, err := fx.photographers.Register(context.Background(), "Test Photographer", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return p.PhotographerID
}

// sellAndComplete creates a completed order for one photographer with one
// line item per price. At the default 2000 bps the photographer keeps 80%.
func (fx *fixture) sellAndComplete(t *testing.T, photographerID string, prices ...int64) *models.Order {
	t.Helper()
	in := services.CreateOrderInput{}
	for _, p := range prices {
		in.Items = append(in.Items, services.OrderItemInput{
			PhotoID:        uuid.NewString(),
			PhotographerID: photographerID,
			License:        models.LicenseStandard,
			Price:          p,
		})
		in.Subtotal += p
	}
	in.Total = in.Subtotal

	order, _, err := fx.orders.CreateOrder(context.Background(), "buyer-1", in)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	completed, err := fx.orders.CompleteOrder(context.Background(), order.OrderID, uuid.NewString(), fx.clock.Now())
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	return completed
}

func (fx *fixture) summary(t *testing.T, photographerID string) models.BalanceSummary {
	t.Helper()
	bal, err := fx.balances.Summary(context.Background(), photographerID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	return bal
}

// assertConserved checks the ledger conservation invariant for one
// photographer: no funds double-counted or lost.
func assertConserved(t *testing.T, fx *fixture, photographerID string) {
	t.Helper()
	bal := fx.summary(t, photographerID)
	got := bal.Available + bal.Pending + bal.Reserved + bal.Withdrawn
	if got != bal.Lifetime {
		t.Fatalf("conservation violated: available=%d pending=%d reserved=%d withdrawn=%d sum=%d lifetime=%d",
			bal.Available, bal.Pending, bal.Reserved, bal.Withdrawn, got, bal.Lifetime)
	}
}
