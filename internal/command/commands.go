package command

import (
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/order"
)

// Cart Commands
type AddToCart struct {
	Owner     cart.Owner `json:"-"`
	VariantID string     `json:"variantId"`
	Quantity  int        `json:"quantity"`
}

type UpdateCartItem struct {
	Owner    cart.Owner `json:"-"`
	ItemID   string     `json:"itemId"`
	Quantity int        `json:"quantity"`
}

type RemoveFromCart struct {
	Owner  cart.Owner
	ItemID string
}

type ClearCart struct {
	Owner cart.Owner
}

// Order Commands
type PlaceOrder struct {
	UserID   string         `json:"-"`
	Shipping order.Address  `json:"shippingInfo"`
	Billing  *order.Address `json:"billingInfo,omitempty"`
	Items    []order.Line   `json:"items"`
	Totals   *order.Totals  `json:"totals,omitempty"`
}

type UpdateOrderStatus struct {
	OrderID string `json:"-"`
	Status  string `json:"status"`
}

// Checkout Commands
type StartCheckout struct {
	Owner         cart.Owner
	CustomerEmail string
}

// Session Commands
type MergeGuestSession struct {
	GuestToken string
	UserID     string
}
