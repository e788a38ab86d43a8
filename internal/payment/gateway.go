// Package payment talks to the card processor: hosted checkout sessions on
// the way out and signed webhook events on the way back.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const ProviderStripe = "stripe"

var (
	ErrEmptyCheckout      = apperr.Validation("cart is empty", "items")
	ErrGatewayUnavailable = apperr.New(apperr.KindInternal, "payment provider unavailable")
)

// CheckoutRequest is what a hosted checkout is opened for.
type CheckoutRequest struct {
	UserID        string
	CustomerEmail string
	Items         []order.Line
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Gateway opens hosted checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type sessionClient interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeConfig struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
}

// StripeGateway creates Stripe Checkout sessions. Calls go through a circuit
// breaker so a failing provider is not hammered on every checkout click.
type StripeGateway struct {
	sessions sessionClient
	breaker  *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
	cfg      StripeConfig
	logger   *zap.Logger
}

func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) *StripeGateway {
	sc := client.New(cfg.SecretKey, nil)
	return newStripeGateway(sc.CheckoutSessions, cfg, logger)
}

func newStripeGateway(sessions sessionClient, cfg StripeConfig, logger *zap.Logger) *StripeGateway {
	logger = logger.Named("payment")
	breaker := gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:        "stripe-checkout",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &StripeGateway{sessions: sessions, breaker: breaker, cfg: cfg, logger: logger}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCheckout
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	totals := pricing.Calculate(lines)

	metadata, err := EncodeCartMetadata(CartSnapshot{UserID: req.UserID, Items: req.Items})
	if err != nil {
		return nil, fmt.Errorf("encode cart metadata: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.cfg.SuccessURL),
		CancelURL:  stripe.String(g.cfg.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"IT", "DE", "FR", "ES", "NL", "BE", "AT", "IE", "PT"}),
		},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, it := range req.Items {
		name := it.ProductName
		if it.VariantName != "" {
			name += " - " + it.VariantName
		}
		params.LineItems = append(params.LineItems, g.lineItem(name, it.UnitPrice, it.Quantity))
	}
	if totals.Tax.IsPositive() {
		params.LineItems = append(params.LineItems, g.lineItem("Tax", totals.Tax, 1))
	}
	if totals.Shipping.IsPositive() {
		params.LineItems = append(params.LineItems, g.lineItem("Shipping", totals.Shipping, 1))
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.sessions.New(params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrGatewayUnavailable
		}
		g.logger.Error("create checkout session failed", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindInternal, "could not start checkout", err)
	}

	g.logger.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", req.UserID),
		zap.String("total", totals.Total.StringFixed(2)),
	)
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) lineItem(name string, unit decimal.Decimal, qty int) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(g.cfg.Currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
			UnitAmount: stripe.Int64(ToMinorUnits(unit)),
		},
		Quantity: stripe.Int64(int64(qty)),
	}
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a two-place amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
