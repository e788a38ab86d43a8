// Package notification reacts to published domain events.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"go.uber.org/zap"
)

// Mailer sends the order confirmation.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, c email.Confirmation) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	logger *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, logger *zap.Logger) *Handler {
	return &Handler{mailer: mailer, logger: logger.Named("notification")}
}

// HandleEvent processes one published event. Events other than
// OrderCreated are ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	if event.EventType != order.EventOrderCreated {
		return nil
	}
	return h.handleOrderCreated(ctx, event)
}

func (h *Handler) handleOrderCreated(ctx context.Context, event store.Event) error {
	var e order.OrderCreated
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("unmarshal %s: %w", order.EventOrderCreated, err)
	}
	log := h.logger.With(zap.String("order_id", e.OrderID), zap.String("order_number", e.OrderNumber))

	if e.CustomerEmail == "" {
		log.Warn("order has no customer email; skipping confirmation")
		return nil
	}

	items := make([]email.OrderItem, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, email.OrderItem{
			Name:     it.ProductName,
			Variant:  it.VariantName,
			SKU:      it.SKU,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}

	err := h.mailer.SendOrderConfirmation(ctx, email.Confirmation{
		To:           e.CustomerEmail,
		CustomerName: strings.TrimSpace(e.CustomerName),
		OrderNumber:  e.OrderNumber,
		Items:        items,
		Subtotal:     e.Subtotal,
		Tax:          e.Tax,
		Shipping:     e.Shipping,
		Total:        e.Total,
	})
	if err != nil {
		return fmt.Errorf("order confirmation for %s: %w", e.OrderNumber, err)
	}
	log.Debug("order confirmation handled", zap.Int("items", len(items)))
	return nil
}
