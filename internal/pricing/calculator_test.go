package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		lines     []Line
		subtotal  string
		tax       string
		shipping  string
		total     string
		itemCount int
	}{
		{
			name:      "below free shipping threshold",
			lines:     []Line{{UnitPrice: d("10.00"), Quantity: 2}, {UnitPrice: d("5.50"), Quantity: 1}},
			subtotal:  "25.50",
			tax:       "5.61",
			shipping:  "7.99",
			total:     "39.10",
			itemCount: 3,
		},
		{
			name:      "exactly at threshold ships free",
			lines:     []Line{{UnitPrice: d("50.00"), Quantity: 1}},
			subtotal:  "50.00",
			tax:       "11.00",
			shipping:  "0",
			total:     "61.00",
			itemCount: 1,
		},
		{
			name:      "just below threshold",
			lines:     []Line{{UnitPrice: d("49.99"), Quantity: 1}},
			subtotal:  "49.99",
			tax:       "11.00",
			shipping:  "7.99",
			total:     "68.98",
			itemCount: 1,
		},
		{
			name:      "empty cart",
			lines:     nil,
			subtotal:  "0",
			tax:       "0",
			shipping:  "7.99",
			total:     "7.99",
			itemCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.lines)

			assert.True(t, d(tt.subtotal).Equal(got.Subtotal), "subtotal: got %s", got.Subtotal)
			assert.True(t, d(tt.tax).Equal(got.Tax), "tax: got %s", got.Tax)
			assert.True(t, d(tt.shipping).Equal(got.Shipping), "shipping: got %s", got.Shipping)
			assert.True(t, d(tt.total).Equal(got.Total), "total: got %s", got.Total)
			assert.Equal(t, tt.itemCount, got.ItemCount)
		})
	}
}

func TestTax_RoundsHalfUp(t *testing.T) {
	// 99.995 * 0.22 = 21.9989
	assert.True(t, d("22.00").Equal(Tax(d("99.995"))))
	// 0.25 * 0.22 = 0.055
	assert.True(t, d("0.06").Equal(Tax(d("0.25"))))
}

func TestShipping(t *testing.T) {
	assert.True(t, ShippingFlat.Equal(Shipping(d("0"))))
	assert.True(t, ShippingFlat.Equal(Shipping(d("49.99"))))
	assert.True(t, decimal.Zero.Equal(Shipping(d("50.00"))))
	assert.True(t, decimal.Zero.Equal(Shipping(d("120.00"))))
}

func TestCalculate_OrderIndependent(t *testing.T) {
	a := []Line{{UnitPrice: d("3.33"), Quantity: 3}, {UnitPrice: d("19.99"), Quantity: 2}}
	b := []Line{a[1], a[0]}

	assert.Equal(t, Calculate(a).Total.String(), Calculate(b).Total.String())
	assert.Equal(t, Calculate(a).Total.String(), Calculate(a).Total.String())
	assert.Equal(t, 5, Calculate(b).ItemCount)
}

func TestCalculate_TotalInvariant(t *testing.T) {
	got := Calculate([]Line{{UnitPrice: d("12.345"), Quantity: 3}})

	// subtotal 37.035 rounds to 37.04
	assert.True(t, d("37.04").Equal(got.Subtotal))
	assert.True(t, Round2(got.Subtotal.Add(got.Tax).Add(got.Shipping)).Equal(got.Total))
}
