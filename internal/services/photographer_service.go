package services

import (
	"context"
	"time"

	"photoledger/internal/models"
	"photoledger/internal/split"

	"github.com/google/uuid"
)

type PhotographerService struct {
	Store      Store
	DefaultBps int32
	Now        func() time.Time
}

func (s *PhotographerService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates a photographer profile. commissionBps is the platform's
// share in basis points; nil takes the configured default. The rate on the
// profile only affects future sales, existing line items keep their snapshot.
func (s *PhotographerService) Register(ctx context.Context, displayName string, commissionBps *int32) (*models.Photographer, error) {
	if displayName == "" {
		return nil, ErrMissingDisplayName
	}
	bps := s.DefaultBps
	if bps == 0 {
		bps = split.DefaultPlatformBps
	}
	if commissionBps != nil {
		bps = *commissionBps
	}
	if bps < 0 || bps > split.RateScale {
		return nil, ErrInvalidCommissionRate
	}

	p := &models.Photographer{
		PhotographerID: uuid.NewString(),
		DisplayName:    displayName,
		CommissionBps:  bps,
		CreatedAt:      s.now(),
	}
	if err := s.Store.CreatePhotographer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PhotographerService) Get(ctx context.Context, photographerID string) (*models.Photographer, error) {
	if photographerID == "" {
		return nil, ErrMissingPhotographerID
	}
	return s.Store.GetPhotographer(ctx, photographerID)
}
