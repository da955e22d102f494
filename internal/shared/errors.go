package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInactive indicates the resource exists but is not ACTIVE.
	ErrInactive = errors.New("not found or inactive")
	// ErrInsufficientStock indicates a decrement would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPaymentMismatch indicates payments do not cover the invoice total.
	ErrPaymentMismatch = errors.New("payment total does not match invoice total")
	// ErrAlreadyVoided indicates a void against a voided invoice.
	ErrAlreadyVoided = errors.New("invoice already voided")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// StockError reports an insufficient stock condition for one branch/sku pair.
type StockError struct {
	BranchID  int64
	SkuID     int64
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %d at branch %d: available %d, requested %d",
		e.SkuID, e.BranchID, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// MismatchError carries the payment/total difference.
type MismatchError struct {
	Total      decimal.Decimal
	Paid       decimal.Decimal
	Difference decimal.Decimal
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("payment total %s does not match invoice total %s (difference %s)",
		e.Paid.StringFixed(2), e.Total.StringFixed(2), e.Difference.StringFixed(2))
}

func (e *MismatchError) Unwrap() error { return ErrPaymentMismatch }

// VoidedError carries the metadata of the earlier void.
type VoidedError struct {
	InvoiceID int64
	VoidedAt  time.Time
	VoidedBy  int64
	Reason    string
}

func (e *VoidedError) Error() string {
	return fmt.Sprintf("invoice %d already voided at %s by staff %d: %s",
		e.InvoiceID, e.VoidedAt.UTC().Format(time.RFC3339), e.VoidedBy, e.Reason)
}

func (e *VoidedError) Unwrap() error { return ErrAlreadyVoided }
