package invoicing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineTotals holds the money figures of one line.
type LineTotals struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
}

// CalculateLineTotals prices quantity units at unitPrice less discountPct.
// The discount is rounded half away from zero to cents before it is
// subtracted, so Net + Discount always equals Gross.
func CalculateLineTotals(quantity int, unitPrice, discountPct decimal.Decimal) LineTotals {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	discount := gross.Mul(discountPct).Div(hundred).Round(2)
	return LineTotals{Gross: gross, Discount: discount, Net: gross.Sub(discount)}
}

// Totals accumulates invoice level figures.
type Totals struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
}

// Add folds one line into the running totals.
func (t *Totals) Add(line LineTotals) {
	t.Subtotal = t.Subtotal.Add(line.Gross)
	t.DiscountTotal = t.DiscountTotal.Add(line.Discount)
}

// Total is subtotal minus discounts.
func (t Totals) Total() decimal.Decimal {
	return t.Subtotal.Sub(t.DiscountTotal)
}

// SumPayments adds the tendered amounts.
func SumPayments(amounts []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum
}

// WithinTolerance reports whether paid covers total within PaymentTolerance.
func WithinTolerance(total, paid decimal.Decimal) bool {
	return paid.Sub(total).Abs().LessThanOrEqual(PaymentTolerance)
}
