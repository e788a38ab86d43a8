package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/guest"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/payment"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/webhook"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxWebhookBytes matches the payload ceiling the payment provider documents.
const maxWebhookBytes = 65536

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	guests       *guest.Service
	webhooks     *webhook.Handler
	logger       *zap.Logger
}

func NewHandlers(
	cmdHandler *command.Handler,
	queryHandler *query.Handler,
	guests *guest.Service,
	webhooks *webhook.Handler,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		guests:       guests,
		webhooks:     webhooks,
		logger:       logger.Named("api"),
	}
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(r)
	if !ok {
		respondJSON(w, http.StatusOK, query.EmptyCartView())
		return
	}
	view, err := h.queryHandler.GetCart(r.Context(), owner)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToCart
	if err := decodeJSON(w, r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	owner, err := h.ensureOwner(w, r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.Owner = owner

	c, err := h.cmdHandler.AddToCart(r.Context(), cmd)
	h.respondCart(w, c, err)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateCartItem
	if err := decodeJSON(w, r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	owner, err := h.ensureOwner(w, r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.Owner = owner

	c, err := h.cmdHandler.UpdateCartItem(r.Context(), cmd)
	h.respondCart(w, c, err)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	owner, err := h.ensureOwner(w, r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	c, err := h.cmdHandler.RemoveFromCart(r.Context(), command.RemoveFromCart{
		Owner:  owner,
		ItemID: chi.URLParam(r, "itemID"),
	})
	h.respondCart(w, c, err)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(r)
	if !ok {
		respondJSON(w, http.StatusOK, query.EmptyCartView())
		return
	}
	c, err := h.cmdHandler.ClearCart(r.Context(), command.ClearCart{Owner: owner})
	h.respondCart(w, c, err)
}

func (h *Handlers) respondCart(w http.ResponseWriter, c *cart.Cart, err error) {
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, query.NewCartView(c))
}

// Order Handlers

type placedOrder struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	TotalAmount string `json:"totalAmount"`
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.PlaceOrder
	if err := decodeJSON(w, r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.UserID = middleware.GetUserID(r.Context())

	o, err := h.cmdHandler.PlaceOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]placedOrder{
		"order": {ID: o.ID, OrderNumber: o.OrderNumber, TotalAmount: o.Total.StringFixed(2)},
	})
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrders(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(r.Context(), chi.URLParam(r, "id"), requester(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.queryHandler.OrderHistory(r.Context(), chi.URLParam(r, "id"), requester(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// Checkout Handlers

func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	owner, ok := currentOwner(r)
	if !ok {
		respondError(w, h.logger, payment.ErrEmptyCheckout)
		return
	}
	email := req.Email
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		email = claims.Email
	}

	sess, err := h.cmdHandler.StartCheckout(r.Context(), command.StartCheckout{Owner: owner, CustomerEmail: email})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// PaymentWebhook needs the raw body; the signature covers its exact bytes.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondJSONError(w, "unable to read body", http.StatusBadRequest)
		return
	}

	result, err := h.webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"received": true, "handled": result.Handled})
}

// Admin Handlers

func (h *Handlers) UpsertVariant(w http.ResponseWriter, r *http.Request) {
	var cmd catalog.UpsertVariant
	if err := decodeJSON(w, r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	v, err := h.cmdHandler.UpsertVariant(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateOrderStatus
	if err := decodeJSON(w, r, &cmd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	cmd.OrderID = chi.URLParam(r, "id")

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), cmd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Health

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

func Health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		respondJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": results})
	}
}

// Helper functions

// currentOwner resolves the signed-in user first, then the guest session.
func currentOwner(r *http.Request) (cart.Owner, bool) {
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		return cart.UserOwner(userID), true
	}
	if token := middleware.GuestToken(r.Context()); token != "" {
		return cart.GuestOwner(token), true
	}
	return cart.Owner{}, false
}

// ensureOwner is currentOwner that starts a guest session when the visitor
// has none.
func (h *Handlers) ensureOwner(w http.ResponseWriter, r *http.Request) (cart.Owner, error) {
	if owner, ok := currentOwner(r); ok {
		return owner, nil
	}
	sess, err := h.guests.Start(r.Context())
	if err != nil {
		return cart.Owner{}, err
	}
	middleware.SetGuestCookie(w, r, sess)
	return cart.GuestOwner(sess.Token), nil
}

func requester(r *http.Request) query.Requester {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return query.Requester{}
	}
	return query.Requester{UserID: claims.UserID, IsAdmin: claims.Role == user.RoleAdmin}
}
