package query

import (
	"context"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"go.uber.org/zap"
)

type Handler struct {
	cartSvc    *cart.Service
	orderSvc   *order.Service
	eventStore store.EventStoreInterface
	logger     *zap.Logger
}

func NewHandler(cartSvc *cart.Service, orderSvc *order.Service, eventStore store.EventStoreInterface, logger *zap.Logger) *Handler {
	return &Handler{
		cartSvc:    cartSvc,
		orderSvc:   orderSvc,
		eventStore: eventStore,
		logger:     logger.Named("query"),
	}
}

// Cart
func (h *Handler) GetCart(ctx context.Context, owner cart.Owner) (*CartView, error) {
	c, err := h.cartSvc.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return NewCartView(c), nil
}

// Orders
func (h *Handler) ListOrders(ctx context.Context, userID string) ([]OrderSummary, error) {
	orders, err := h.orderSvc.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderSummary(o))
	}
	return out, nil
}

// GetOrder returns an order to its owner or an admin. Anyone else gets
// ErrOrderNotFound so order ids cannot be enumerated.
func (h *Handler) GetOrder(ctx context.Context, orderID string, who Requester) (*order.Order, error) {
	o, err := h.orderSvc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin && (o.UserID == "" || o.UserID != who.UserID) {
		h.logger.Info("order access denied", zap.String("order_id", orderID), zap.String("user_id", who.UserID))
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

// OrderHistory returns the order's event log, oldest first.
func (h *Handler) OrderHistory(ctx context.Context, orderID string, who Requester) ([]store.Event, error) {
	if _, err := h.GetOrder(ctx, orderID, who); err != nil {
		return nil, err
	}
	events, err := h.eventStore.GetEvents(ctx, orderID)
	if err != nil {
		return nil, apperr.Persistence("get order events", err)
	}
	return events, nil
}
