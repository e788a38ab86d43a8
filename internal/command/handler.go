package command

import (
	"context"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/guest"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/payment"
	"go.uber.org/zap"
)

type Handler struct {
	cartSvc    *cart.Service
	orderSvc   *order.Service
	catalogSvc *catalog.Service
	guestSvc   *guest.Service
	gateway    payment.Gateway
	logger     *zap.Logger
}

func NewHandler(
	cartSvc *cart.Service,
	orderSvc *order.Service,
	catalogSvc *catalog.Service,
	guestSvc *guest.Service,
	gateway payment.Gateway,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		cartSvc:    cartSvc,
		orderSvc:   orderSvc,
		catalogSvc: catalogSvc,
		guestSvc:   guestSvc,
		gateway:    gateway,
		logger:     logger.Named("command"),
	}
}

// AddToCart adds a variant at its current catalog price
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*cart.Cart, error) {
	return h.cartSvc.AddItem(ctx, cmd.Owner, cmd.VariantID, cmd.Quantity)
}

// UpdateCartItem sets a line's quantity; zero removes it
func (h *Handler) UpdateCartItem(ctx context.Context, cmd UpdateCartItem) (*cart.Cart, error) {
	return h.cartSvc.UpdateQuantity(ctx, cmd.Owner, cmd.ItemID, cmd.Quantity)
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) (*cart.Cart, error) {
	return h.cartSvc.RemoveItem(ctx, cmd.Owner, cmd.ItemID)
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) (*cart.Cart, error) {
	return h.cartSvc.Clear(ctx, cmd.Owner)
}

// PlaceOrder creates a pending order from a checkout form. The cart is left
// untouched; clearing it is the client's call.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	return h.orderSvc.PlaceDirect(ctx, order.CheckoutRequest{
		UserID:   cmd.UserID,
		Shipping: cmd.Shipping,
		Billing:  cmd.Billing,
		Items:    cmd.Items,
		Totals:   cmd.Totals,
	})
}

func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	status, err := order.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	return h.orderSvc.UpdateStatus(ctx, cmd.OrderID, status)
}

func (h *Handler) UpsertVariant(ctx context.Context, cmd catalog.UpsertVariant) (*catalog.Variant, error) {
	return h.catalogSvc.Upsert(ctx, cmd)
}

// StartCheckout opens a hosted checkout for the owner's current cart. The
// cart travels with the session so the webhook can build the paid order.
func (h *Handler) StartCheckout(ctx context.Context, cmd StartCheckout) (*payment.CheckoutSession, error) {
	c, err := h.cartSvc.Load(ctx, cmd.Owner)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, payment.ErrEmptyCheckout
	}

	items := make([]order.Line, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, order.Line{
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			VariantName: it.VariantName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return h.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		UserID:        cmd.Owner.UserID,
		CustomerEmail: cmd.CustomerEmail,
		Items:         items,
	})
}

// MergeGuestSession folds a guest cart into the user's cart after sign-in
// and ends the guest session. Failures are logged; sign-in never fails
// because of them.
func (h *Handler) MergeGuestSession(ctx context.Context, cmd MergeGuestSession) {
	if cmd.GuestToken == "" || cmd.UserID == "" {
		return
	}
	log := h.logger.With(zap.String("user_id", cmd.UserID))

	if _, err := h.cartSvc.MergeGuest(ctx, cmd.GuestToken, cmd.UserID); err != nil {
		log.Warn("guest cart merge failed", zap.Error(err))
	}
	if err := h.guestSvc.End(ctx, cmd.GuestToken); err != nil {
		log.Warn("failed to end guest session", zap.Error(err))
	}
}
