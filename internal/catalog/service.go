package catalog

import (
	"context"
	"fmt"

	"github.com/retailpos/pos-backend/internal/shared"
)

// Store abstracts SKU persistence.
type Store interface {
	GetSku(ctx context.Context, id int64) (Sku, error)
	UpdateStatus(ctx context.Context, id int64, status shared.Status) error
}

// Service answers SKU lookups.
type Service struct {
	store Store
}

// NewService builds Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Sku returns the SKU regardless of status.
func (s *Service) Sku(ctx context.Context, id int64) (Sku, error) {
	if id <= 0 {
		return Sku{}, shared.Validationf("sku id required")
	}
	return s.store.GetSku(ctx, id)
}

// ActiveSku returns the SKU only when it can be sold.
func (s *Service) ActiveSku(ctx context.Context, id int64) (Sku, error) {
	sku, err := s.Sku(ctx, id)
	if err != nil {
		return Sku{}, err
	}
	if !sku.Status.IsActive() {
		return Sku{}, fmt.Errorf("%w: sku %d", shared.ErrInactive, id)
	}
	return sku, nil
}

// SetStatus moves the SKU through its ACTIVE/INACTIVE lifecycle.
func (s *Service) SetStatus(ctx context.Context, id int64, status shared.Status) (Sku, error) {
	sku, err := s.Sku(ctx, id)
	if err != nil {
		return Sku{}, err
	}
	next, err := sku.Status.Transition(status)
	if err != nil {
		return Sku{}, err
	}
	if err := s.store.UpdateStatus(ctx, id, next); err != nil {
		return Sku{}, err
	}
	sku.Status = next
	return sku, nil
}
