package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retailpos/pos-backend/internal/shared"
)

type memoryStore struct {
	skus map[int64]Sku
}

func (m *memoryStore) GetSku(ctx context.Context, id int64) (Sku, error) {
	sku, ok := m.skus[id]
	if !ok {
		return Sku{}, shared.NotFoundf("sku %d", id)
	}
	return sku, nil
}

func (m *memoryStore) UpdateStatus(ctx context.Context, id int64, status shared.Status) error {
	sku := m.skus[id]
	sku.Status = status
	m.skus[id] = sku
	return nil
}

func newTestService() (*Service, *memoryStore) {
	store := &memoryStore{skus: map[int64]Sku{
		1: {ID: 1, ProductID: 10, PresentationID: 1, Name: "Cola 600ml", Status: shared.StatusActive},
		2: {ID: 2, ProductID: 11, PresentationID: 1, Name: "Old chips", Status: shared.StatusInactive},
	}}
	return NewService(store), store
}

func TestActiveSku(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sku, err := svc.ActiveSku(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Cola 600ml", sku.Name)

	_, err = svc.ActiveSku(ctx, 2)
	require.ErrorIs(t, err, shared.ErrInactive)

	_, err = svc.ActiveSku(ctx, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.ActiveSku(ctx, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetStatusDeactivates(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	sku, err := svc.SetStatus(ctx, 1, shared.StatusInactive)
	require.NoError(t, err)
	require.Equal(t, shared.StatusInactive, sku.Status)
	require.Equal(t, shared.StatusInactive, store.skus[1].Status)

	_, err = svc.SetStatus(ctx, 1, shared.StatusInactive)
	require.ErrorIs(t, err, shared.ErrValidation)
}
