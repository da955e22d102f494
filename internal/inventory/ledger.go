package inventory

import (
	"context"
	"fmt"

	"github.com/retailpos/pos-backend/internal/shared"
)

// The functions below run against a transaction-bound TxRepository so the
// invoicing engine can share one unit of work with the ledger. Each quantity
// change writes exactly one movement for the row it touches.

// ReserveForSale decrements stock for a sale. The row must exist and hold at
// least qty units once locked.
func ReserveForSale(ctx context.Context, tx TxRepository, branchID, skuID int64, qty int, reference string) (StockChange, error) {
	if qty <= 0 {
		return StockChange{}, ErrInvalidQuantity
	}
	stock, err := tx.LockStock(ctx, branchID, skuID)
	if err != nil {
		if IsStockNotFound(err) {
			return StockChange{}, &shared.StockError{BranchID: branchID, SkuID: skuID, Available: 0, Requested: qty}
		}
		return StockChange{}, err
	}
	change, _, err := apply(ctx, tx, stock, -qty, MovementSale, reference)
	return change, err
}

// ReleaseFromVoid returns sold units to the branch when an invoice is voided.
func ReleaseFromVoid(ctx context.Context, tx TxRepository, branchID, skuID int64, qty int, reference string) (StockChange, error) {
	if qty <= 0 {
		return StockChange{}, ErrInvalidQuantity
	}
	stock, err := tx.EnsureStock(ctx, branchID, skuID)
	if err != nil {
		return StockChange{}, err
	}
	change, _, err := apply(ctx, tx, stock, qty, MovementReturn, reference)
	return change, err
}

func adjust(ctx context.Context, tx TxRepository, branchID, skuID int64, delta int, kind MovementKind, reference string) (StockChange, Movement, error) {
	if delta == 0 {
		return StockChange{}, Movement{}, ErrInvalidQuantity
	}
	stock, err := tx.EnsureStock(ctx, branchID, skuID)
	if err != nil {
		return StockChange{}, Movement{}, err
	}
	return apply(ctx, tx, stock, delta, kind, reference)
}

// transfer locks both rows in ascending branch order so concurrent transfers
// in opposite directions cannot deadlock.
func transfer(ctx context.Context, tx TxRepository, in TransferInput, reference string) (TransferResult, error) {
	if in.FromBranchID == in.ToBranchID {
		return TransferResult{}, ErrSameBranch
	}
	if in.Quantity <= 0 {
		return TransferResult{}, ErrInvalidQuantity
	}
	var src, dst Stock
	var err error
	lockSource := func() error {
		src, err = tx.LockStock(ctx, in.FromBranchID, in.SkuID)
		if IsStockNotFound(err) {
			return &shared.StockError{BranchID: in.FromBranchID, SkuID: in.SkuID, Available: 0, Requested: in.Quantity}
		}
		return err
	}
	lockDestination := func() error {
		dst, err = tx.EnsureStock(ctx, in.ToBranchID, in.SkuID)
		return err
	}
	first, second := lockSource, lockDestination
	if in.ToBranchID < in.FromBranchID {
		first, second = lockDestination, lockSource
	}
	if err := first(); err != nil {
		return TransferResult{}, err
	}
	if err := second(); err != nil {
		return TransferResult{}, err
	}

	out, _, err := apply(ctx, tx, src, -in.Quantity, MovementTransferOut, reference)
	if err != nil {
		return TransferResult{}, err
	}
	inChange, _, err := apply(ctx, tx, dst, in.Quantity, MovementTransferIn, reference)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{SkuID: in.SkuID, Quantity: in.Quantity, Reference: reference, From: out, To: inChange}, nil
}

func apply(ctx context.Context, tx TxRepository, stock Stock, delta int, kind MovementKind, reference string) (StockChange, Movement, error) {
	after := stock.Quantity + delta
	if after < 0 {
		return StockChange{}, Movement{}, &shared.StockError{
			BranchID:  stock.BranchID,
			SkuID:     stock.SkuID,
			Available: stock.Quantity,
			Requested: -delta,
		}
	}
	if err := tx.SetQuantity(ctx, stock.BranchID, stock.SkuID, after); err != nil {
		return StockChange{}, Movement{}, err
	}
	mv, err := tx.InsertMovement(ctx, Movement{
		BranchID:  stock.BranchID,
		SkuID:     stock.SkuID,
		Kind:      kind,
		Delta:     delta,
		Reference: truncateReference(reference),
	})
	if err != nil {
		return StockChange{}, Movement{}, fmt.Errorf("inventory: record %s movement: %w", kind, err)
	}
	return StockChange{BranchID: stock.BranchID, Before: stock.Quantity, After: after}, mv, nil
}
