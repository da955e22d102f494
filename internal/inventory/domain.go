package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/retailpos/pos-backend/internal/shared"
)

// MovementKind enumerates stock ledger movements.
type MovementKind string

const (
	MovementPurchase    MovementKind = "PURCHASE"
	MovementSale        MovementKind = "SALE"
	MovementAdjustment  MovementKind = "ADJUSTMENT"
	MovementTransferIn  MovementKind = "TRANSFER_IN"
	MovementTransferOut MovementKind = "TRANSFER_OUT"
	MovementReturn      MovementKind = "RETURN"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementPurchase, MovementSale, MovementAdjustment, MovementTransferIn, MovementTransferOut, MovementReturn:
		return true
	}
	return false
}

// referenceMax matches stock_movements.reference.
const referenceMax = 60

// Stock is the on-hand quantity of one SKU at one branch.
type Stock struct {
	BranchID  int64     `json:"branchId"`
	SkuID     int64     `json:"skuId"`
	Quantity  int       `json:"quantity"`
	Minimum   int       `json:"minimum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Movement is one immutable ledger entry.
type Movement struct {
	ID        int64        `json:"id"`
	BranchID  int64        `json:"branchId"`
	SkuID     int64        `json:"skuId"`
	Kind      MovementKind `json:"kind"`
	Delta     int          `json:"delta"`
	Reference string       `json:"reference"`
	CreatedAt time.Time    `json:"createdAt"`
}

// StockState classifies a stock row against its minimum.
type StockState string

const (
	StateOK  StockState = "OK"
	StateLow StockState = "LOW"
	StateOut StockState = "OUT"
)

// State derives the row's alert state.
func (s Stock) State() StockState {
	switch {
	case s.Quantity == 0:
		return StateOut
	case s.Quantity < s.Minimum:
		return StateLow
	default:
		return StateOK
	}
}

// StockChange reports the quantity around a single ledger write.
type StockChange struct {
	BranchID int64 `json:"branchId"`
	Before   int   `json:"before"`
	After    int   `json:"after"`
}

// StockFilter narrows stock listings.
type StockFilter struct {
	BranchID     int64
	SkuID        int64
	BelowMinimum bool
	OutOfStock   bool
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	BranchID int64
	SkuID    int64
	Kind     MovementKind
	From     time.Time
	To       time.Time
	Limit    int
}

// MovementSummary aggregates movements of one kind.
type MovementSummary struct {
	Kind  MovementKind `json:"kind"`
	Count int          `json:"count"`
	Net   int          `json:"net"`
}

// Drift is a stock row whose quantity disagrees with its movement history.
type Drift struct {
	BranchID  int64 `json:"branchId"`
	SkuID     int64 `json:"skuId"`
	Quantity  int   `json:"quantity"`
	LedgerSum int   `json:"ledgerSum"`
}

// AdjustInput describes a manual stock correction.
type AdjustInput struct {
	BranchID int64  `json:"branchId" validate:"required,gt=0"`
	SkuID    int64  `json:"skuId" validate:"required,gt=0"`
	Delta    int    `json:"delta" validate:"required"`
	Reason   string `json:"reason" validate:"max=60"`
	ActorID  int64  `json:"actorId,omitempty"`
}

// AdjustResult is returned by Adjust.
type AdjustResult struct {
	SkuID    int64       `json:"skuId"`
	Change   StockChange `json:"change"`
	Movement Movement    `json:"movement"`
}

// TransferInput moves stock between two branches.
type TransferInput struct {
	SkuID        int64 `json:"skuId" validate:"required,gt=0"`
	FromBranchID int64 `json:"fromBranchId" validate:"required,gt=0"`
	ToBranchID   int64 `json:"toBranchId" validate:"required,gt=0,nefield=FromBranchID"`
	Quantity     int   `json:"quantity" validate:"required,gt=0"`
	ActorID      int64 `json:"actorId,omitempty"`
}

// TransferResult reports both sides of a transfer.
type TransferResult struct {
	SkuID     int64       `json:"skuId"`
	Quantity  int         `json:"quantity"`
	Reference string      `json:"reference"`
	From      StockChange `json:"from"`
	To        StockChange `json:"to"`
}

// ReceiveInput books inbound stock from a purchase or a customer return.
type ReceiveInput struct {
	BranchID  int64        `json:"branchId" validate:"required,gt=0"`
	SkuID     int64        `json:"skuId" validate:"required,gt=0"`
	Quantity  int          `json:"quantity" validate:"required,gt=0"`
	Kind      MovementKind `json:"kind,omitempty" validate:"omitempty,oneof=PURCHASE RETURN"`
	Reference string       `json:"reference" validate:"max=60"`
	ActorID   int64        `json:"actorId,omitempty"`
}

// MinimumInput sets the low-stock threshold.
type MinimumInput struct {
	BranchID int64 `json:"branchId" validate:"required,gt=0"`
	SkuID    int64 `json:"skuId" validate:"required,gt=0"`
	Minimum  int   `json:"minimum" validate:"gte=0"`
}

// BranchStats summarises a branch's stock rows.
type BranchStats struct {
	Total      int `json:"total"`
	InStock    int `json:"inStock"`
	OutOfStock int `json:"outOfStock"`
	Alerts     int `json:"alerts"`
}

// BranchRow is a stock row with its derived state.
type BranchRow struct {
	Stock
	State StockState `json:"state"`
}

// BranchInventory lists one branch's stock.
type BranchInventory struct {
	BranchID int64       `json:"branchId"`
	Items    []BranchRow `json:"items"`
	Stats    BranchStats `json:"stats"`
}

// SkuAvailability lists one SKU across branches.
type SkuAvailability struct {
	SkuID         int64   `json:"skuId"`
	Total         int     `json:"total"`
	BranchesStock int     `json:"branchesWithStock"`
	Branches      []Stock `json:"branches"`
}

// Alert is a stock row below its minimum.
type Alert struct {
	Stock
	Shortfall int `json:"shortfall"`
}

var (
	// ErrStockNotFound indicates a missing branch/sku stock row.
	ErrStockNotFound = fmt.Errorf("%w: stock row", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a zero or out-of-range quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: invalid quantity", shared.ErrValidation)
	// ErrSameBranch indicates a transfer onto its own source.
	ErrSameBranch = fmt.Errorf("%w: source and destination branch must differ", shared.ErrValidation)
)

// IsStockNotFound reports whether err is a missing stock row.
func IsStockNotFound(err error) bool {
	return errors.Is(err, ErrStockNotFound)
}

func truncateReference(ref string) string {
	runes := []rune(ref)
	if len(runes) <= referenceMax {
		return ref
	}
	return string(runes[:referenceMax])
}
