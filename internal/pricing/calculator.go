// Package pricing computes cart and order totals. All functions are pure.
package pricing

import "github.com/shopspring/decimal"

var (
	TaxRate               = decimal.RequireFromString("0.22")
	FreeShippingThreshold = decimal.RequireFromString("50.00")
	ShippingFlat          = decimal.RequireFromString("7.99")
)

// Line is one priced quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals is the derived price breakdown of a set of lines.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Tax returns the tax owed on a subtotal.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return Round2(subtotal.Mul(TaxRate))
}

// Shipping returns the flat shipping fee, waived at or above the threshold.
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return ShippingFlat
}

// Calculate derives totals for lines. An empty input yields zero subtotal and
// tax with the flat shipping fee.
func Calculate(lines []Line) Totals {
	sum := decimal.Zero
	count := 0
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}

	subtotal := Round2(sum)
	tax := Tax(subtotal)
	shipping := Shipping(subtotal)

	return Totals{
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Total:     Round2(subtotal.Add(tax).Add(shipping)),
		ItemCount: count,
	}
}
