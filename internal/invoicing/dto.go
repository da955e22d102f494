package invoicing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/retailpos/pos-backend/internal/shared"
)

// CreateInvoiceRequest is the payload of POST /invoices.
type CreateInvoiceRequest struct {
	CustomerID int64            `json:"customerId" validate:"required,gt=0"`
	StaffID    int64            `json:"staffId" validate:"required,gt=0"`
	BranchID   int64            `json:"branchId" validate:"required,gt=0"`
	Series     string           `json:"series" validate:"omitempty,max=10"`
	Lines      []LineRequest    `json:"lines" validate:"required,min=1,dive"`
	Payments   []PaymentRequest `json:"payments" validate:"required,min=1,dive"`
}

// LineRequest describes one requested line. A nil UnitPrice asks the price
// resolver for the effective price and discount.
type LineRequest struct {
	SkuID       int64            `json:"skuId" validate:"required,gt=0"`
	Quantity    int              `json:"quantity" validate:"gt=0"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	DiscountPct *decimal.Decimal `json:"discountPct"`
}

// PaymentRequest describes one tender.
type PaymentRequest struct {
	Method       PaymentMethod   `json:"method" validate:"required,oneof=CASH DEBIT_CARD CREDIT_CARD CHECK TRANSFER DEPOSIT"`
	Amount       decimal.Decimal `json:"amount"`
	Reference    string          `json:"reference" validate:"max=100"`
	AuthorizedBy string          `json:"authorizer" validate:"max=100"`
	GatewayTxID  string          `json:"gatewayTxId" validate:"max=100"`
}

// VoidRequest is the payload of PUT /invoices/{id}/void.
type VoidRequest struct {
	StaffID int64  `json:"staffId" validate:"required,gt=0"`
	Reason  string `json:"reason" validate:"required"`
}

// validate checks shape and the decimal ranges the validator cannot express.
func (r *CreateInvoiceRequest) validate() error {
	if err := shared.Validate(r); err != nil {
		return err
	}
	for i, line := range r.Lines {
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return shared.Validationf("line %d: unit price must be >= 0", i+1)
		}
		if line.DiscountPct != nil && (line.DiscountPct.IsNegative() || line.DiscountPct.GreaterThan(hundred)) {
			return shared.Validationf("line %d: discount must be between 0 and 100", i+1)
		}
	}
	for i, p := range r.Payments {
		if !p.Amount.Round(2).IsPositive() {
			return shared.Validationf("payment %d: amount must be at least 0.01", i+1)
		}
	}
	return nil
}

func (r VoidRequest) validate() error {
	if err := shared.Validate(r); err != nil {
		return err
	}
	if strings.TrimSpace(r.Reason) == "" {
		return shared.Validationf("reason required")
	}
	return nil
}
