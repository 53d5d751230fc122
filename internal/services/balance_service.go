package services

import (
	"context"
	"time"

	"photoledger/internal/models"
)

type BalanceService struct {
	Store Store
	Now   func() time.Time
}

func (s *BalanceService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Summary reports the photographer's available, pending, reserved, withdrawn
// and lifetime figures as of now. Pure read; the store computes all sums from
// one consistent snapshot.
func (s *BalanceService) Summary(ctx context.Context, photographerID string) (models.BalanceSummary, error) {
	if photographerID == "" {
		return models.BalanceSummary{}, ErrMissingPhotographerID
	}
	if _, err := s.Store.GetPhotographer(ctx, photographerID); err != nil {
		return models.BalanceSummary{}, err
	}
	return s.Store.Balances(ctx, photographerID, s.now())
}
