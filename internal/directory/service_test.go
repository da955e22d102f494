package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retailpos/pos-backend/internal/shared"
)

type memoryStore struct {
	branches  map[int64]Branch
	staff     map[int64]Staff
	customers map[int64]Customer
}

func (m *memoryStore) GetBranch(ctx context.Context, id int64) (Branch, error) {
	if b, ok := m.branches[id]; ok {
		return b, nil
	}
	return Branch{}, shared.NotFoundf("branch %d", id)
}

func (m *memoryStore) GetStaff(ctx context.Context, id int64) (Staff, error) {
	if s, ok := m.staff[id]; ok {
		return s, nil
	}
	return Staff{}, shared.NotFoundf("staff %d", id)
}

func (m *memoryStore) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	if c, ok := m.customers[id]; ok {
		return c, nil
	}
	return Customer{}, shared.NotFoundf("customer %d", id)
}

func (m *memoryStore) UpdateBranchStatus(ctx context.Context, id int64, status shared.Status) error {
	b := m.branches[id]
	b.Status = status
	m.branches[id] = b
	return nil
}

func TestActiveBranch(t *testing.T) {
	store := &memoryStore{branches: map[int64]Branch{
		1: {ID: 1, Name: "Centro", Status: shared.StatusActive},
		2: {ID: 2, Name: "Norte", Status: shared.StatusInactive},
	}}
	svc := NewService(store)
	ctx := context.Background()

	b, err := svc.ActiveBranch(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Centro", b.Name)

	_, err = svc.ActiveBranch(ctx, 2)
	require.ErrorIs(t, err, shared.ErrInactive)

	_, err = svc.ActiveBranch(ctx, 3)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLookupsRejectMissingIDs(t *testing.T) {
	svc := NewService(&memoryStore{})
	ctx := context.Background()

	_, err := svc.Customer(ctx, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Staff(ctx, -1)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Customer(ctx, 5)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetBranchStatusReopens(t *testing.T) {
	store := &memoryStore{branches: map[int64]Branch{2: {ID: 2, Status: shared.StatusInactive}}}
	svc := NewService(store)

	b, err := svc.SetBranchStatus(context.Background(), 2, shared.StatusActive)
	require.NoError(t, err)
	require.Equal(t, shared.StatusActive, b.Status)
	require.Equal(t, shared.StatusActive, store.branches[2].Status)
}
