package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockErrorUnwraps(t *testing.T) {
	err := error(&StockError{BranchID: 1, SkuID: 7, Available: 2, Requested: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "available 2")
	assert.Contains(t, err.Error(), "requested 5")

	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(7), stockErr.SkuID)
}

func TestMismatchErrorCarriesDifference(t *testing.T) {
	err := error(&MismatchError{
		Total:      decimal.RequireFromString("500.00"),
		Paid:       decimal.RequireFromString("490.00"),
		Difference: decimal.RequireFromString("10.00"),
	})
	require.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Contains(t, err.Error(), "difference 10.00")
}

func TestVoidedErrorUnwraps(t *testing.T) {
	err := error(&VoidedError{InvoiceID: 3, VoidedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), VoidedBy: 9, Reason: "customer return"})
	require.ErrorIs(t, err, ErrAlreadyVoided)
	assert.Contains(t, err.Error(), "customer return")
}

func TestIdempotencyConflictIsDuplicate(t *testing.T) {
	require.ErrorIs(t, ErrIdempotencyConflict, ErrDuplicate)
}

func TestStatusTransition(t *testing.T) {
	next, err := StatusActive.Transition(StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, next)

	_, err = StatusInactive.Transition(StatusInactive)
	require.ErrorIs(t, err, ErrValidation)

	_, err = StatusActive.Transition(Status("ARCHIVED"))
	require.ErrorIs(t, err, ErrValidation)
	assert.True(t, StatusActive.IsActive())
	assert.False(t, StatusInactive.IsActive())
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, ClampLimit(0, 50, 500))
	assert.Equal(t, 500, ClampLimit(9000, 50, 500))
	assert.Equal(t, 20, ClampLimit(20, 50, 500))
}
