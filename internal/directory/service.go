package directory

import (
	"context"
	"fmt"

	"github.com/retailpos/pos-backend/internal/shared"
)

// Store abstracts directory persistence.
type Store interface {
	GetBranch(ctx context.Context, id int64) (Branch, error)
	GetStaff(ctx context.Context, id int64) (Staff, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	UpdateBranchStatus(ctx context.Context, id int64, status shared.Status) error
}

// Service answers directory lookups.
type Service struct {
	store Store
}

// NewService builds Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Branch(ctx context.Context, id int64) (Branch, error) {
	if id <= 0 {
		return Branch{}, shared.Validationf("branch id required")
	}
	return s.store.GetBranch(ctx, id)
}

// ActiveBranch returns the branch only when it accepts new stock or sales events.
func (s *Service) ActiveBranch(ctx context.Context, id int64) (Branch, error) {
	b, err := s.Branch(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	if !b.Status.IsActive() {
		return Branch{}, fmt.Errorf("%w: branch %d", shared.ErrInactive, id)
	}
	return b, nil
}

func (s *Service) Staff(ctx context.Context, id int64) (Staff, error) {
	if id <= 0 {
		return Staff{}, shared.Validationf("staff id required")
	}
	return s.store.GetStaff(ctx, id)
}

func (s *Service) Customer(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, shared.Validationf("customer id required")
	}
	return s.store.GetCustomer(ctx, id)
}

// SetBranchStatus opens or closes a branch.
func (s *Service) SetBranchStatus(ctx context.Context, id int64, status shared.Status) (Branch, error) {
	b, err := s.Branch(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	next, err := b.Status.Transition(status)
	if err != nil {
		return Branch{}, err
	}
	if err := s.store.UpdateBranchStatus(ctx, id, next); err != nil {
		return Branch{}, err
	}
	b.Status = next
	return b, nil
}
