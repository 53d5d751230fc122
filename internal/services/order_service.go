package services

import (
	"context"
	"time"

	"photoledger/internal/metrics"
	"photoledger/internal/models"
	"photoledger/internal/split"

	"github.com/google/uuid"
)

type OrderService struct {
	Store      Store
	HoldPeriod time.Duration
	Now        func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type OrderItemInput struct {
	PhotoID        string
	PhotographerID string
	License        models.LicenseTier
	Price          int64
}

type CreateOrderInput struct {
	Subtotal int64
	Tax      int64
	Discount int64
	Total    int64
	Items    []OrderItemInput
}

// CreateOrder records a pending order and its line items. Items carry no
// revenue until the provider confirms payment; the split is not computed here.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID string, in CreateOrderInput) (*models.Order, []*models.OrderItem, error) {
	if buyerID == "" {
		return nil, nil, ErrMissingBuyerID
	}
	if len(in.Items) == 0 {
		return nil, nil, ErrNoItems
	}
	if in.Tax < 0 || in.Discount < 0 {
		return nil, nil, ErrNegativeAdjustment
	}

	var sum int64
	for _, it := range in.Items {
		if it.Price <= 0 {
			return nil, nil, ErrNonPositivePrice
		}
		if it.License != models.LicenseStandard && it.License != models.LicenseExtended {
			return nil, nil, ErrInvalidLicense
		}
		if _, err := s.Store.GetPhotographer(ctx, it.PhotographerID); err != nil {
			return nil, nil, err
		}
		sum += it.Price
	}
	if sum != in.Subtotal {
		return nil, nil, ErrSubtotalMismatch
	}
	if in.Subtotal+in.Tax-in.Discount != in.Total {
		return nil, nil, ErrTotalMismatch
	}

	now := s.now()
	order := &models.Order{
		OrderID:   uuid.NewString(),
		BuyerID:   buyerID,
		Subtotal:  in.Subtotal,
		Tax:       in.Tax,
		Discount:  in.Discount,
		Total:     in.Total,
		Status:    models.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	items := make([]*models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, &models.OrderItem{
			ItemID:         uuid.NewString(),
			OrderID:        order.OrderID,
			PhotoID:        it.PhotoID,
			PhotographerID: it.PhotographerID,
			License:        it.License,
			Price:          it.Price,
			CreatedAt:      now,
		})
	}

	if err := s.Store.CreateOrder(ctx, order, items); err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	return s.Store.GetOrder(ctx, orderID)
}

func (s *OrderService) ListItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	if _, err := s.Store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.Store.ListOrderItems(ctx, orderID)
}

// CompleteOrder realizes an order's revenue on a provider completion
// notification. The commission split is computed here, exactly once per item,
// from each photographer's current rate, and each item gets an explicit
// availability timestamp (completion + hold period). Delivery is at least
// once: a replay with the same provider transaction id is a no-op that
// returns the order as-is.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID, providerTxID string, completedAt time.Time) (*models.Order, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	if providerTxID == "" {
		return nil, ErrMissingProviderRef
	}
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	completedAt = completedAt.UTC()

	items, err := s.Store.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		if _, err := s.Store.GetOrder(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, ErrNoItems
	}

	rates := make(map[string]int32)
	availableAt := completedAt.Add(s.HoldPeriod)
	splits := make([]models.ItemSplit, 0, len(items))
	for _, it := range items {
		bps, ok := rates[it.PhotographerID]
		if !ok {
			p, err := s.Store.GetPhotographer(ctx, it.PhotographerID)
			if err != nil {
				return nil, err
			}
			bps = p.CommissionBps
			rates[it.PhotographerID] = bps
		}
		sp, err := split.Compute(it.Price, bps)
		if err != nil {
			return nil, err
		}
		splits = append(splits, models.ItemSplit{
			ItemID:             it.ItemID,
			PhotographerAmount: sp.PhotographerAmount,
			PlatformFee:        sp.PlatformFee,
			CommissionBps:      bps,
			AvailableAt:        availableAt,
		})
	}

	ev := &models.PaymentEvent{
		ProviderTxID: providerTxID,
		OrderID:      orderID,
		Status:       string(models.OrderCompleted),
		ReceivedAt:   s.now(),
	}
	inserted, updated, err := s.Store.CompleteOrder(ctx, ev, completedAt, splits)
	if err != nil {
		return nil, err
	}
	if inserted && updated == 0 {
		return nil, ErrOrderNotPending
	}
	if inserted {
		metrics.OrdersCompleted.Inc()
	}
	return s.Store.GetOrder(ctx, orderID)
}

func (s *OrderService) FailOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.finishOrder(ctx, orderID, models.OrderFailed)
}

func (s *OrderService) RefundOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.finishOrder(ctx, orderID, models.OrderRefunded)
}

func (s *OrderService) finishOrder(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	updated, err := s.Store.SetOrderStatus(ctx, orderID, status, s.now())
	if err != nil {
		return nil, err
	}
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if updated == 0 && order.Status != status {
		return nil, ErrOrderNotPending
	}
	return order, nil
}
