package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

var (
	ErrOrderNotFound    = apperr.New(apperr.KindNotFound, "order not found")
	ErrEmptyOrder       = apperr.Validation("order must have at least one item", "items")
	ErrInvalidLine      = apperr.Validation("each item needs a variant, a quantity of at least 1 and a non-negative price", "items")
	ErrUnknownStatus    = apperr.Validation("unknown order status", "status")
	ErrInvalidStatus    = apperr.New(apperr.KindConflict, "invalid order status transition")
	ErrOrderAlreadyPaid = apperr.New(apperr.KindConflict, "order is already paid")
	ErrOrderNotPaid     = apperr.New(apperr.KindConflict, "order must be paid first")
	ErrOrderCancelled   = apperr.New(apperr.KindConflict, "order is cancelled")
	ErrOrderRefunded    = apperr.New(apperr.KindConflict, "order is refunded")

	// ErrPaymentNotFound is returned by repositories when no payment matches.
	ErrPaymentNotFound = errors.New("payment not found")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {}, // terminal state
	StatusRefunded:   {}, // terminal state
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validTransitions[st]; !ok {
		return "", ErrUnknownStatus
	}
	return st, nil
}

// Address is a shipping or billing address. Email is carried with the
// shipping address because that is where checkout collects it.
type Address struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

// Item is a snapshot of a purchased line, decoupled from the live catalog.
type Item struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	VariantID       string          `json:"variantId"`
	ProductName     string          `json:"productName"`
	VariantName     string          `json:"variantName"`
	SKU             string          `json:"sku"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
}

type Payment struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"orderId"`
	Provider          string          `json:"provider"`
	CheckoutSessionID string          `json:"checkoutSessionId,omitempty"`
	PaymentIntentID   string          `json:"paymentIntentId,omitempty"`
	Status            PaymentStatus   `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaidAt            *time.Time      `json:"paidAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	UserID          string          `json:"userId,omitempty"`
	Status          Status          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	CustomerEmail   string          `json:"customerEmail"`
	ShippingAddress Address         `json:"shippingAddress"`
	BillingAddress  Address         `json:"billingAddress"`
	Items           []Item          `json:"items"`
	Payments        []Payment       `json:"payments,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	return slices.Contains(validTransitions[o.Status], target)
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusRefunded:
		return ErrOrderRefunded
	case o.Status != StatusPending && target == StatusPaid:
		return ErrOrderAlreadyPaid
	case o.Status == StatusPending && (target == StatusProcessing || target == StatusShipped || target == StatusDelivered || target == StatusRefunded):
		return ErrOrderNotPaid
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// Repository persists orders together with their items and payments.
// Create writes everything in one transaction.
type Repository interface {
	Create(ctx context.Context, o *Order, p *Payment) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
	FindPaymentByIntent(ctx context.Context, intentID string) (*Payment, error)
	// CompletePayment marks the payment completed and sets the order status
	// in one transaction.
	CompletePayment(ctx context.Context, paymentID string, paidAt time.Time, orderStatus Status) error
}
