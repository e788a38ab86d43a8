package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Line is one item submitted for an order.
type Line struct {
	VariantID   string          `json:"variantId"`
	ProductName string          `json:"name"`
	VariantName string          `json:"variantName"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
}

// Totals are client-computed totals sent with a direct checkout.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// CheckoutRequest is a direct checkout submission.
type CheckoutRequest struct {
	UserID   string
	Shipping Address
	Billing  *Address
	Items    []Line
	Totals   *Totals
}

// PaymentConfirmation is a completed gateway checkout with the cart snapshot
// it was created from.
type PaymentConfirmation struct {
	Provider          string
	CheckoutSessionID string
	PaymentIntentID   string
	UserID            string
	CustomerEmail     string
	Shipping          Address
	Items             []Line
	AmountPaid        decimal.Decimal
	Currency          string
}

type orderSpec struct {
	userID   string
	email    string
	shipping Address
	billing  Address
	items    []Line
	status   Status
	totals   *Totals
	payment  *Payment
}

type Service struct {
	repo       Repository
	eventStore store.EventStoreInterface
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(repo Repository, es store.EventStoreInterface, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		eventStore: es,
		logger:     logger.Named("order"),
		now:        time.Now,
	}
}

// PlaceDirect creates a pending order from a checkout form. Supplied totals
// are stored as sent; they are computed server-side when absent.
// Nothing ties this order to a later checkout.session.completed for the same
// cart, so a purchase that goes through both paths yields two orders.
func (s *Service) PlaceDirect(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if missing := missingShippingFields(req.Shipping); len(missing) > 0 {
		return nil, apperr.Validation("missing required shipping fields", missing...)
	}

	billing := req.Shipping
	if req.Billing != nil {
		billing = *req.Billing
	}

	return s.createOrder(ctx, orderSpec{
		userID:   req.UserID,
		email:    strings.TrimSpace(req.Shipping.Email),
		shipping: req.Shipping,
		billing:  billing,
		items:    req.Items,
		status:   StatusPending,
		totals:   req.Totals,
	}, true)
}

// PlaceFromPayment creates a paid order from a confirmed gateway checkout.
// Totals are always recomputed from the item snapshot.
func (s *Service) PlaceFromPayment(ctx context.Context, pc PaymentConfirmation) (*Order, error) {
	now := s.now().UTC()
	provider := pc.Provider
	if provider == "" {
		provider = "stripe"
	}

	return s.createOrder(ctx, orderSpec{
		userID:   pc.UserID,
		email:    pc.CustomerEmail,
		shipping: pc.Shipping,
		billing:  pc.Shipping,
		items:    pc.Items,
		status:   StatusPaid,
		payment: &Payment{
			Provider:          provider,
			CheckoutSessionID: pc.CheckoutSessionID,
			PaymentIntentID:   pc.PaymentIntentID,
			Status:            PaymentCompleted,
			Amount:            pc.AmountPaid,
			Currency:          pc.Currency,
			PaidAt:            &now,
		},
	}, false)
}

// createOrder is the single writer behind both checkout paths.
func (s *Service) createOrder(ctx context.Context, spec orderSpec, trustedTotals bool) (*Order, error) {
	if len(spec.items) == 0 {
		return nil, ErrEmptyOrder
	}
	lines := make([]pricing.Line, 0, len(spec.items))
	for _, l := range spec.items {
		if l.VariantID == "" || l.Quantity < 1 || l.UnitPrice.IsNegative() {
			return nil, ErrInvalidLine
		}
		lines = append(lines, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}

	computed := pricing.Calculate(lines)
	now := s.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		OrderNumber:     GenerateOrderNumber(now),
		UserID:          spec.userID,
		Status:          spec.status,
		Subtotal:        computed.Subtotal,
		Tax:             computed.Tax,
		Shipping:        computed.Shipping,
		Total:           computed.Total,
		CustomerEmail:   spec.email,
		ShippingAddress: spec.shipping,
		BillingAddress:  spec.billing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if trustedTotals && spec.totals != nil {
		o.Subtotal = pricing.Round2(spec.totals.Subtotal)
		o.Tax = pricing.Round2(spec.totals.Tax)
		o.Shipping = pricing.Round2(spec.totals.Shipping)
		o.Total = pricing.Round2(spec.totals.Total)
		if !o.Total.Equal(computed.Total) {
			s.logger.Warn("client totals differ from computed totals",
				zap.String("order_number", o.OrderNumber),
				zap.String("client_total", o.Total.StringFixed(2)),
				zap.String("computed_total", computed.Total.StringFixed(2)),
			)
		}
	}

	o.Items = make([]Item, 0, len(spec.items))
	for _, l := range spec.items {
		o.Items = append(o.Items, Item{
			ID:              uuid.New().String(),
			OrderID:         o.ID,
			VariantID:       l.VariantID,
			ProductName:     l.ProductName,
			VariantName:     l.VariantName,
			SKU:             l.SKU,
			Quantity:        l.Quantity,
			PriceAtPurchase: pricing.Round2(l.UnitPrice),
		})
	}

	p := spec.payment
	if p != nil {
		p.ID = uuid.New().String()
		p.OrderID = o.ID
		p.CreatedAt = now
		if p.Amount.IsZero() {
			p.Amount = o.Total
		}
		o.Payments = []Payment{*p}
	}

	if err := s.repo.Create(ctx, o, p); err != nil {
		s.logger.Error("create order failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
		return nil, apperr.Persistence("create order", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("status", string(o.Status)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	s.appendEvent(ctx, o.ID, EventOrderCreated, newOrderCreated(o))
	return o, nil
}

// MarkPaidByPaymentIntent completes the payment with the given intent id and
// moves a pending order to paid. It reports false without error when no
// payment is known yet.
func (s *Service) MarkPaidByPaymentIntent(ctx context.Context, intentID string) (bool, error) {
	p, err := s.repo.FindPaymentByIntent(ctx, intentID)
	if errors.Is(err, ErrPaymentNotFound) {
		s.logger.Info("no payment for intent yet", zap.String("payment_intent", intentID))
		return false, nil
	}
	if err != nil {
		return false, apperr.Persistence("find payment", err)
	}

	o, err := s.repo.Get(ctx, p.OrderID)
	if err != nil {
		return false, s.wrapGetErr(err)
	}

	target := o.Status
	if o.CanTransitionTo(StatusPaid) {
		target = StatusPaid
	}
	if p.Status == PaymentCompleted && target == o.Status {
		return true, nil
	}

	now := s.now().UTC()
	if err := s.repo.CompletePayment(ctx, p.ID, now, target); err != nil {
		return false, apperr.Persistence("complete payment", err)
	}

	s.appendEvent(ctx, o.ID, EventPaymentCompleted, PaymentCompletedEvent{
		OrderID:         o.ID,
		PaymentID:       p.ID,
		PaymentIntentID: intentID,
		PaidAt:          now,
	})
	if target != o.Status {
		s.appendEvent(ctx, o.ID, EventOrderStatusChanged, OrderStatusChanged{
			OrderID: o.ID, From: o.Status, To: target, ChangedAt: now,
		})
	}
	return true, nil
}

// UpdateStatus moves an order through the transition table.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target Status) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, s.wrapGetErr(err)
	}
	if !o.CanTransitionTo(target) {
		return nil, o.transitionError(target)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, o.ID, target, now); err != nil {
		return nil, apperr.Persistence("update order status", err)
	}

	from := o.Status
	o.Status = target
	o.UpdatedAt = now
	s.appendEvent(ctx, o.ID, EventOrderStatusChanged, OrderStatusChanged{
		OrderID: o.ID, From: from, To: target, ChangedAt: now,
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, s.wrapGetErr(err)
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list orders", err)
	}
	return orders, nil
}

func (s *Service) wrapGetErr(err error) error {
	if errors.Is(err, ErrOrderNotFound) {
		return err
	}
	return apperr.Persistence("get order", err)
}

// appendEvent records a domain event. The order row is the source of truth,
// so a failure here is logged and not returned.
func (s *Service) appendEvent(ctx context.Context, orderID, eventType string, data any) {
	if s.eventStore == nil {
		return
	}
	if _, err := s.eventStore.Append(ctx, orderID, AggregateType, eventType, data); err != nil {
		s.logger.Warn("append order event failed",
			zap.String("order_id", orderID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func missingShippingFields(a Address) []string {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"email", a.Email},
		{"address", a.Address},
		{"city", a.City},
		{"postalCode", a.PostalCode},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
