// Package invoicing issues and voids POS invoices against the branch stock
// ledger.
package invoicing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/pos-backend/internal/shared"
)

// Status enumerates invoice lifecycle states. ISSUED is the only initial
// state and VOIDED is terminal.
type Status string

const (
	StatusIssued Status = "ISSUED"
	StatusVoided Status = "VOIDED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusIssued || s == StatusVoided
}

// PaymentMethod enumerates accepted tenders.
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "CASH"
	MethodDebitCard  PaymentMethod = "DEBIT_CARD"
	MethodCreditCard PaymentMethod = "CREDIT_CARD"
	MethodCheck      PaymentMethod = "CHECK"
	MethodTransfer   PaymentMethod = "TRANSFER"
	MethodDeposit    PaymentMethod = "DEPOSIT"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodDebitCard, MethodCreditCard, MethodCheck, MethodTransfer, MethodDeposit:
		return true
	}
	return false
}

// DefaultSeries is used when a request names no series.
const DefaultSeries = "A"

// PaymentTolerance is the largest accepted gap between tendered and invoiced.
var PaymentTolerance = decimal.New(1, -2)

// Invoice is an issued sales document.
type Invoice struct {
	ID            int64           `json:"id"`
	Number        int64           `json:"number"`
	Series        string          `json:"series"`
	IssuedAt      time.Time       `json:"issuedAt"`
	CustomerID    int64           `json:"customerId"`
	StaffID       int64           `json:"staffId"`
	BranchID      int64           `json:"branchId"`
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	VoidedBy      *int64          `json:"voidedBy,omitempty"`
	VoidedAt      *time.Time      `json:"voidedAt,omitempty"`
	VoidReason    string          `json:"voidReason,omitempty"`
	Lines         []Line          `json:"lines"`
	Payments      []Payment       `json:"payments"`
}

// Display renders the series-number pair printed on receipts.
func (i Invoice) Display() string {
	return fmt.Sprintf("%s-%d", i.Series, i.Number)
}

func saleReference(series string, number int64) string {
	return fmt.Sprintf("Invoice %s-%d", series, number)
}

func voidReference(series string, number int64) string {
	return fmt.Sprintf("Void Invoice %s-%d", series, number)
}

// Line is one SKU row on an invoice.
type Line struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoiceId"`
	SkuID          int64           `json:"skuId"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	DiscountPct    decimal.Decimal `json:"discountPct"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	LineSubtotal   decimal.Decimal `json:"lineSubtotal"`
}

// Payment is one tender applied to an invoice.
type Payment struct {
	ID           int64           `json:"id"`
	InvoiceID    int64           `json:"invoiceId"`
	Method       PaymentMethod   `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Reference    string          `json:"reference,omitempty"`
	AuthorizedBy string          `json:"authorizedBy,omitempty"`
	GatewayTxID  string          `json:"gatewayTxId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Payments is the payment listing of one invoice.
type Payments struct {
	InvoiceID int64           `json:"invoiceId"`
	Total     decimal.Decimal `json:"invoiceTotal"`
	PaidTotal decimal.Decimal `json:"paidTotal"`
	Payments  []Payment       `json:"payments"`
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	BranchID   int64
	CustomerID int64
	StaffID    int64
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
}

// VoidState is the lockable part of an invoice used when voiding.
type VoidState struct {
	ID         int64
	Number     int64
	Series     string
	BranchID   int64
	Status     Status
	VoidedBy   *int64
	VoidedAt   *time.Time
	VoidReason string
	Lines      []Line
}

// ErrInvoiceNotFound is returned when an invoice id is unknown.
var ErrInvoiceNotFound = fmt.Errorf("%w: invoice", shared.ErrNotFound)
