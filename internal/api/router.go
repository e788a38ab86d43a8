// Package api exposes the storefront over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/guest"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers       *Handlers
	Auth           *AuthHandlers
	Tokens         *auth.TokenService
	Guests         *guest.Service
	Health         map[string]HealthCheck
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	h, ah := cfg.Handlers, cfg.Auth
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger.Named("http")))
	r.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", Health(cfg.Health))

	// Signed by the payment provider, not by a user.
	r.Post("/payment-webhook", h.PaymentWebhook)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", ah.Register)
		r.Post("/login", ah.Login)
		r.Post("/logout", ah.Logout)
		r.Post("/refresh", ah.Refresh)
		r.With(middleware.AuthMiddleware(cfg.Tokens)).Get("/me", ah.Me)
	})

	// Storefront: a user or a guest.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthMiddleware(cfg.Tokens))
		r.Use(middleware.GuestSession(cfg.Guests, cfg.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/", h.AddToCart)
			r.Patch("/", h.UpdateCartItem)
			r.Delete("/", h.ClearCart)
			r.Delete("/items/{itemID}", h.RemoveFromCart)
		})
		r.Post("/orders", h.PlaceOrder)
		r.Post("/checkout/session", h.CreateCheckoutSession)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Tokens))

		r.Get("/orders", h.GetOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/orders/{id}/history", h.GetOrderHistory)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(user.RoleAdmin))
			r.Post("/variants", h.UpsertVariant)
			r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
		})
	})

	return r
}
