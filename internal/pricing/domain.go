// Package pricing resolves the effective sale price of a SKU at a branch.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/pos-backend/internal/shared"
)

// Scope tells whether a resolution came from a branch-specific or a global row.
type Scope string

const (
	ScopeBranch Scope = "BRANCH"
	ScopeGlobal Scope = "GLOBAL"
)

var hundred = decimal.NewFromInt(100)

// Price is one price row. A nil BranchID marks a global price.
type Price struct {
	ID          int64           `json:"id"`
	SkuID       int64           `json:"skuId"`
	BranchID    *int64          `json:"branchId,omitempty"`
	SalePrice   decimal.Decimal `json:"salePrice"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	ValidFrom   time.Time       `json:"validFrom"`
	ValidTo     *time.Time      `json:"validTo,omitempty"`
	Status      shared.Status   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Covers reports whether the price is usable at asOf.
func (p Price) Covers(asOf time.Time) bool {
	if !p.Status.IsActive() {
		return false
	}
	if p.ValidFrom.After(asOf) {
		return false
	}
	return p.ValidTo == nil || !p.ValidTo.Before(asOf)
}

// Resolution is the price applied to a sale.
type Resolution struct {
	PriceID     int64           `json:"priceId"`
	SkuID       int64           `json:"skuId"`
	BranchID    int64           `json:"branchId"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	FinalPrice  decimal.Decimal `json:"finalPrice"`
	Scope       Scope           `json:"scope"`
}

// FinalPrice applies the discount percentage and rounds half-up to cents.
func FinalPrice(unit, discountPct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPct.Div(hundred))
	return unit.Mul(factor).Round(2)
}

// CreateInput describes a new price row.
type CreateInput struct {
	SkuID       int64           `json:"skuId" validate:"required,gt=0"`
	BranchID    *int64          `json:"branchId,omitempty" validate:"omitempty,gt=0"`
	SalePrice   decimal.Decimal `json:"salePrice"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	ValidFrom   *time.Time      `json:"validFrom,omitempty"`
	ValidTo     *time.Time      `json:"validTo,omitempty"`
}
