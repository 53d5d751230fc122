package services_test

import (
	"context"
	"errors"
	"testing"

	"photoledger/internal/models"
	"photoledger/internal/services"

	"github.com/google/uuid"
)

func TestCreateOrderValidation(t *testing.T) {
	fx := newFixture()
	pid := fx.registerPhotographer(t)
	ctx := context.Background()

	valid := services.CreateOrderInput{
		Subtotal: 5000,
		Total:    5000,
		Items: []services.OrderItemInput{
			{PhotoID: "photo-1", PhotographerID: pid, License: models.LicenseStandard, Price: 5000},
		},
	}

	cases := []struct {
		name    string
		buyerID string
		mutate  func(in *services.CreateOrderInput)
		want    error
	}{
		{"missing buyer", "", func(in *services.CreateOrderInput) {}, services.ErrMissingBuyerID},
		{"no items", "b1", func(in *services.CreateOrderInput) { in.Items = nil }, services.ErrNoItems},
		{"zero price", "b1", func(in *services.CreateOrderInput) { in.Items[0].Price = 0 }, services.ErrNonPositivePrice},
		{"negative price", "b1", func(in *services.CreateOrderInput) { in.Items[0].Price = -10 }, services.ErrNonPositivePrice},
		{"bad license", "b1", func(in *services.CreateOrderInput) { in.Items[0].License = "exclusive" }, services.ErrInvalidLicense},
		{"unknown photographer", "b1", func(in *services.CreateOrderInput) { in.Items[0].PhotographerID = "nope" }, services.ErrPhotographerNotFound},
		{"subtotal mismatch", "b1", func(in *services.CreateOrderInput) { in.Subtotal = 4999 }, services.ErrSubtotalMismatch},
		{"total mismatch", "b1", func(in *services.CreateOrderInput) { in.Total = 1 }, services.ErrTotalMismatch},
		{"negative tax", "b1", func(in *services.CreateOrderInput) { in.Tax = -1 }, services.ErrNegativeAdjustment},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := valid
			in.Items = append([]services.OrderItemInput(nil), valid.Items...)
			c.mutate(&in)
			if _, _, err := fx.orders.CreateOrder(ctx, c.buyerID, in); !errors.Is(err, c.want) {
				t.Errorf("got %v, want %v", err, c.want)
			}
		})
	}

	if _, _, err := fx.orders.CreateOrder(ctx, "b1", valid); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}
}

func TestCompleteOrderComputesSplitOnce(t *testing.T) {
	fx := newFixture()
	pid := fx.registerPhotographer(t)
	ctx := context.Background()

	order, _, err := fx.orders.CreateOrder(ctx, "b1", services.CreateOrderInput{
		Subtotal: 126,
		Total:    126,
		Items: []services.OrderItemInput{
			{PhotoID: "p1", PhotographerID: pid, License: models.LicenseStandard, Price: 101},
			{PhotoID: "p2", PhotographerID: pid, License: models.LicenseExtended, Price: 25},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	items, err := fx.orders.ListItems(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	for _, it := range items {
		if it.PhotographerAmount != nil || it.PlatformFee != nil || it.AvailableAt != nil {
			t.Fatalf("split computed before completion: %+v", it)
		}
	}

	completedAt := fx.clock.Now()
	if _, err := fx.orders.CompleteOrder(ctx, order.OrderID, "tx-1", completedAt); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	items, err = fx.orders.ListItems(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	// 2000 bps: fee rounds half up, photographer takes the remainder
	wantFees := map[int64]int64{101: 20, 25: 5}
	for _, it := range items {
		if it.PhotographerAmount == nil || it.PlatformFee == nil {
			t.Fatalf("split missing after completion: %+v", it)
		}
		if *it.PlatformFee != wantFees[it.Price] {
			t.Errorf("price %d: fee %d, want %d", it.Price, *it.PlatformFee, wantFees[it.Price])
		}
		if *it.PhotographerAmount+*it.PlatformFee != it.Price {
			t.Errorf("price %d: split does not sum", it.Price)
		}
		if it.AvailableAt == nil || !it.AvailableAt.Equal(completedAt.Add(holdPeriod)) {
			t.Errorf("price %d: availableAt %v, want completion+hold", it.Price, it.AvailableAt)
		}
	}
}

func TestCompleteOrderIdempotent(t *testing.T) {
	fx := newFixture()
	pid := fx.registerPhotographer(t)
	ctx := context.Background()

	order, _, err := fx.orders.CreateOrder(ctx, "b1", services.CreateOrderInput{
		Subtotal: 5000,
		Total:    5000,
		Items: []services.OrderItemInput{
			{PhotoID: "p1", PhotographerID: pid, License: models.LicenseStandard, Price: 5000},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := fx.orders.CompleteOrder(ctx, order.OrderID, "tx-1", fx.clock.Now()); err != nil {
		t.Fatalf("first completion: %v", err)
	}

	// replay of the same notification is a no-op
	got, err := fx.orders.CompleteOrder(ctx, order.OrderID, "tx-1", fx.clock.Now())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got.Status != models.OrderCompleted {
		t.Fatalf("replay status = %s", got.Status)
	}

	bal := fx.summary(t, pid)
	if bal.Lifetime != 4000 {
		t.Fatalf("lifetime = %d after replay, want 4000", bal.Lifetime)
	}

	// a different provider transaction against a settled order is rejected
	if _, err := fx.orders.CompleteOrder(ctx, order.OrderID, "tx-2", fx.clock.Now()); !errors.Is(err, services.ErrOrderNotPending) {
		t.Fatalf("second tx: got %v, want ErrOrderNotPending", err)
	}
}

func TestFailedOrderEarnsNothing(t *testing.T) {
	fx := newFixture()
	pid := fx.registerPhotographer(t)
	ctx := context.Background()

	order, _, err := fx.orders.CreateOrder(ctx, "b1", services.CreateOrderInput{
		Subtotal: 5000,
		Total:    5000,
		Items: []services.OrderItemInput{
			{PhotoID: "p1", PhotographerID: pid, License: models.LicenseStandard, Price: 5000},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := fx.orders.FailOrder(ctx, order.OrderID); err != nil {
		t.Fatalf("FailOrder: %v", err)
	}
	// failing again is a no-op, completing is not
	if _, err := fx.orders.FailOrder(ctx, order.OrderID); err != nil {
		t.Fatalf("FailOrder replay: %v", err)
	}
	if _, err := fx.orders.CompleteOrder(ctx, order.OrderID, uuid.NewString(), fx.clock.Now()); !errors.Is(err, services.ErrOrderNotPending) {
		t.Fatalf("complete failed order: got %v, want ErrOrderNotPending", err)
	}

	bal := fx.summary(t, pid)
	if bal.Lifetime != 0 || bal.Available != 0 || bal.Pending != 0 {
		t.Fatalf("failed order leaked revenue: %+v", bal)
	}
}

func TestRefundOrderOnlyFromPending(t *testing.T) {
	fx := newFixture()
	pid := fx.registerPhotographer(t)
	ctx := context.Background()

	order := fx.sellAndComplete(t, pid, 5000)
	if _, err := fx.orders.RefundOrder(ctx, order.OrderID); !errors.Is(err, services.ErrOrderNotPending) {
		t.Fatalf("refund completed order: got %v, want ErrOrderNotPending", err)
	}
}
