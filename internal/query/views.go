package query

import (
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

// CartView is the cart as the storefront renders it.
type CartView struct {
	Items     []cart.LineItem `json:"items"`
	Totals    pricing.Totals  `json:"totals"`
	UpdatedAt time.Time       `json:"updatedAt,omitempty"`
}

type OrderSummary struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Status      order.Status    `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Requester is who is asking for an order.
type Requester struct {
	UserID  string
	IsAdmin bool
}

// NewCartView prices c for display.
func NewCartView(c *cart.Cart) *CartView {
	items := c.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return &CartView{Items: items, Totals: c.Totals(), UpdatedAt: c.UpdatedAt}
}

func newOrderSummary(o *order.Order) OrderSummary {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return OrderSummary{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		TotalAmount: o.Total,
		ItemCount:   count,
		CreatedAt:   o.CreatedAt,
	}
}

// EmptyCartView is what a visitor without any cart sees.
func EmptyCartView() *CartView {
	return NewCartView(&cart.Cart{})
}
