package cart

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

const MaxQuantityPerItem = 10

var (
	ErrInvalidQuantity   = apperr.Validation("quantity must be between 1 and 10", "quantity")
	ErrExceedsStock      = apperr.Validation("requested quantity exceeds available stock", "quantity")
	ErrInsufficientStock = apperr.New(apperr.KindInsufficientStock, "not enough stock for requested quantity")
	ErrItemNotFound      = apperr.New(apperr.KindNotFound, "cart item not found")
	ErrNoOwner           = apperr.New(apperr.KindUnauthenticated, "cart owner is required")
	ErrCartConflict      = apperr.New(apperr.KindConflict, "cart was modified by another request")

	// ErrCartNotFound is returned by stores when the owner has no saved cart.
	ErrCartNotFound = errors.New("cart not found")
)

// Owner identifies whose cart it is. Exactly one of the fields is set.
type Owner struct {
	UserID     string `json:"userId,omitempty"`
	GuestToken string `json:"guestToken,omitempty"`
}

func UserOwner(userID string) Owner {
	return Owner{UserID: userID}
}

func GuestOwner(token string) Owner {
	return Owner{GuestToken: token}
}

func (o Owner) IsGuest() bool {
	return o.UserID == "" && o.GuestToken != ""
}

func (o Owner) Valid() bool {
	return (o.UserID == "") != (o.GuestToken == "")
}

// Key is a stable identifier for the owner, used for request collapsing.
func (o Owner) Key() string {
	if o.IsGuest() {
		return "guest:" + o.GuestToken
	}
	return "user:" + o.UserID
}

// LineItem is one variant in a cart with the price captured when it was added.
type LineItem struct {
	ID                string              `json:"id"`
	VariantID         string              `json:"variantId"`
	ProductName       string              `json:"productName"`
	VariantName       string              `json:"variantName"`
	SKU               string              `json:"sku"`
	Quantity          int                 `json:"quantity"`
	UnitPrice         decimal.Decimal     `json:"unitPrice"`
	OriginalUnitPrice decimal.NullDecimal `json:"originalUnitPrice"`
}

type Cart struct {
	Owner     Owner      `json:"owner"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
	// Version is incremented by the store on every save.
	Version int `json:"version"`
}

// Store persists carts for one kind of owner. Load returns ErrCartNotFound
// when nothing is saved. Save returns ErrCartConflict if the stored version
// no longer matches c.Version, and bumps c.Version on success.
type Store interface {
	Load(ctx context.Context, owner Owner) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, owner Owner) error
}

func newCart(owner Owner) *Cart {
	return &Cart{Owner: owner, Items: []LineItem{}}
}

// Totals prices the cart.
func (c *Cart) Totals() pricing.Totals {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return pricing.Calculate(lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) findByVariant(variantID string) int {
	for i, it := range c.Items {
		if it.VariantID == variantID {
			return i
		}
	}
	return -1
}

func (c *Cart) findItem(itemID string) int {
	for i, it := range c.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// removeItem drops the item if present and reports whether it was found.
func (c *Cart) removeItem(itemID string) bool {
	i := c.findItem(itemID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
