package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/guest"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/infrastructure/redisstore"
	"github.com/example/ec-storefront/internal/infrastructure/repository"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
	"github.com/example/ec-storefront/internal/payment"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/testutil"
	"github.com/example/ec-storefront/internal/webhook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingGateway struct {
	requests []payment.CheckoutRequest
}

func (g *recordingGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	return &payment.CheckoutSession{ID: "cs_test_1", URL: "https://pay.test/cs_test_1"}, nil
}

type testServer struct {
	srv     *httptest.Server
	tokens  *auth.TokenService
	carts   *cart.Service
	gateway *recordingGateway
	catalog *catalog.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SQLite(t)
	rdb, _ := testutil.Redis(t)
	logger := zap.NewNop()

	catalogSvc := catalog.NewService(repository.NewVariantRepository(db), logger)
	cartSvc := cart.NewService(
		repository.NewCartRepository(db),
		redisstore.NewGuestCartStore(rdb, time.Hour),
		catalogSvc,
		logger,
	)
	events := mocks.NewEventStore()
	orderSvc := order.NewService(repository.NewOrderRepository(db), events, logger)
	guestSvc := guest.NewService(redisstore.NewGuestSessionStore(rdb), time.Hour, logger)
	userSvc := user.NewService(repository.NewUserRepository(db), logger)
	tokens := auth.NewTokenService("api-test-secret-key-with-32-chars!!", 15*time.Minute, time.Hour)
	gw := &recordingGateway{}

	cmdHandler := command.NewHandler(cartSvc, orderSvc, catalogSvc, guestSvc, gw, logger)
	queryHandler := query.NewHandler(cartSvc, orderSvc, events, logger)
	webhooks := webhook.NewHandler(payment.NewStripeVerifier("whsec_test", true), orderSvc, nil, logger)

	router := NewRouter(RouterConfig{
		Handlers: NewHandlers(cmdHandler, queryHandler, guestSvc, webhooks, logger),
		Auth:     NewAuthHandlers(userSvc, tokens, redisstore.NewAuthSessionStore(rdb), cmdHandler, logger),
		Tokens:   tokens,
		Guests:   guestSvc,
		Health: map[string]HealthCheck{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		RequestTimeout: 5 * time.Second,
		Logger:         logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, tokens: tokens, carts: cartSvc, gateway: gw, catalog: catalogSvc}
}

func (s *testServer) variant(t *testing.T, sku, price string, stock int) *catalog.Variant {
	t.Helper()
	v, err := s.catalog.Upsert(context.Background(), catalog.UpsertVariant{
		ProductName: "Product " + sku,
		Name:        "Default",
		SKU:         sku,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
	})
	require.NoError(t, err)
	return v
}

// client is a browser-like caller with its own cookie jar.
type client struct {
	t      *testing.T
	base   string
	http   *http.Client
	bearer string
}

func (s *testServer) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: s.srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *client) cookie(path, name string) string {
	u, err := url.Parse(c.base + path)
	require.NoError(c.t, err)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (c *client) register(email string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/auth/register", RegisterRequest{Email: email, Password: "password123", Name: "Ada"})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
}

func checkoutBody(v *catalog.Variant, qty int) map[string]any {
	return map[string]any{
		"shippingInfo": map[string]string{
			"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com",
			"address": "1 Main St", "city": "Rome", "postalCode": "00100",
		},
		"items": []map[string]any{{
			"variantId": v.ID, "name": v.ProductName, "sku": v.SKU, "quantity": qty, "price": v.Price.StringFixed(2),
		}},
	}
}

// ============================================
// Cart Tests
// ============================================

func TestCart_GuestLifecycle(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	v := s.variant(t, "TEE", "10.00", 5)

	resp := c.do(http.MethodPost, "/cart", map[string]any{"variantId": v.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[query.CartView](t, resp)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "20.00", view.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "32.39", view.Totals.Total.StringFixed(2))
	assert.NotEmpty(t, c.cookie("/", middleware.GuestSessionCookie))
	itemID := view.Items[0].ID

	view = decode[query.CartView](t, c.do(http.MethodGet, "/cart", nil))
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Totals.ItemCount)

	resp = c.do(http.MethodPatch, "/cart", map[string]any{"itemId": itemID, "quantity": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decode[query.CartView](t, resp).Totals.ItemCount)

	resp = c.do(http.MethodDelete, "/cart/items/"+itemID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[query.CartView](t, resp).Items)

	c.do(http.MethodPost, "/cart", map[string]any{"variantId": v.ID, "quantity": 1})
	resp = c.do(http.MethodDelete, "/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[query.CartView](t, resp).Items)
}

func TestCart_NewVisitorSeesEmptyCart(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	resp := c.do(http.MethodGet, "/cart", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Cookies())
	view := decode[query.CartView](t, resp)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.Totals.ItemCount)
}

func TestCart_Errors(t *testing.T) {
	s := newTestServer(t)
	v := s.variant(t, "MUG", "8.00", 1)

	tests := []struct {
		name       string
		method     string
		body       any
		wantStatus int
	}{
		{"unknown variant", http.MethodPost, map[string]any{"variantId": "missing", "quantity": 1}, http.StatusNotFound},
		{"zero quantity", http.MethodPost, map[string]any{"variantId": v.ID, "quantity": 0}, http.StatusBadRequest},
		{"over stock", http.MethodPost, map[string]any{"variantId": v.ID, "quantity": 2}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "not an object", http.StatusBadRequest},
		{"unknown item", http.MethodPatch, map[string]any{"itemId": "missing", "quantity": 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.client(t).do(tt.method, "/cart", tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, decode[errorResponse](t, resp).Error)
		})
	}
}

// ============================================
// Auth Tests
// ============================================

func TestAuth_RegisterMergesGuestCart(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	v := s.variant(t, "TEE", "10.00", 5)
	c.do(http.MethodPost, "/cart", map[string]any{"variantId": v.ID, "quantity": 2})
	require.NotEmpty(t, c.cookie("/", middleware.GuestSessionCookie))

	resp := c.do(http.MethodPost, "/auth/register", RegisterRequest{Email: "ada@example.com", Password: "password123", Name: "Ada"})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ada@example.com", decode[AuthResponse](t, resp).User.Email)
	assert.Empty(t, c.cookie("/", middleware.GuestSessionCookie))
	assert.NotEmpty(t, c.cookie("/", middleware.AccessTokenCookie))

	view := decode[query.CartView](t, c.do(http.MethodGet, "/cart", nil))
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)

	me := decode[UserResponse](t, c.do(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, user.RoleCustomer, me.Role)
}

func TestAuth_Failures(t *testing.T) {
	s := newTestServer(t)
	s.client(t).register("ada@example.com")

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantFields []string
	}{
		{"wrong password", "/auth/login", LoginRequest{Email: "ada@example.com", Password: "wrong-password"}, http.StatusUnauthorized, nil},
		{"unknown email", "/auth/login", LoginRequest{Email: "bob@example.com", Password: "password123"}, http.StatusUnauthorized, nil},
		{"duplicate email", "/auth/register", RegisterRequest{Email: "ADA@example.com", Password: "password123", Name: "Ada"}, http.StatusConflict, nil},
		{"bad email", "/auth/register", RegisterRequest{Email: "nope", Password: "password123", Name: "Ada"}, http.StatusBadRequest, []string{"email"}},
		{"weak password", "/auth/register", RegisterRequest{Email: "eve@example.com", Password: "short", Name: "Eve"}, http.StatusBadRequest, []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.client(t).do(http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantFields, decode[errorResponse](t, resp).Fields)
		})
	}
}

func TestAuth_LoginThenMe(t *testing.T) {
	s := newTestServer(t)
	s.client(t).register("ada@example.com")
	c := s.client(t)

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/auth/me", nil).StatusCode)

	resp := c.do(http.MethodPost, "/auth/login", LoginRequest{Email: "Ada@Example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/auth/me", nil).StatusCode)
}

func TestAuth_RefreshRotatesSession(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	c.register("ada@example.com")
	oldRefresh := c.cookie(refreshCookiePath+"/refresh", refreshTokenCookie)
	require.NotEmpty(t, oldRefresh)

	resp := c.do(http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newRefresh := c.cookie(refreshCookiePath+"/refresh", refreshTokenCookie)
	assert.NotEqual(t, oldRefresh, newRefresh)

	// The rotated-out token no longer has a session.
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: oldRefresh})
	stale, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stale.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, stale.StatusCode)

	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/refresh", nil).StatusCode)
}

func TestAuth_RefreshWithoutCookie(t *testing.T) {
	s := newTestServer(t)

	resp := s.client(t).do(http.MethodPost, "/auth/refresh", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_Logout(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	c.register("ada@example.com")

	resp := c.do(http.MethodPost, "/auth/logout", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, c.cookie("/", middleware.AccessTokenCookie))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/auth/me", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/auth/refresh", nil).StatusCode)
}

// ============================================
// Order Tests
// ============================================

func TestOrders_GuestDirectCheckout(t *testing.T) {
	s := newTestServer(t)
	v := s.variant(t, "TEE", "10.00", 5)

	resp := s.client(t).do(http.MethodPost, "/orders", checkoutBody(v, 2))

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]placedOrder](t, resp)
	assert.NotEmpty(t, body["order"].ID)
	assert.NotEmpty(t, body["order"].OrderNumber)
	assert.Equal(t, "32.39", body["order"].TotalAmount)
}

func TestOrders_RejectsEmptyOrder(t *testing.T) {
	s := newTestServer(t)
	v := s.variant(t, "TEE", "10.00", 5)
	body := checkoutBody(v, 1)
	body["items"] = []any{}

	resp := s.client(t).do(http.MethodPost, "/orders", body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{"items"}, decode[errorResponse](t, resp).Fields)
}

func TestOrders_ListAndAccess(t *testing.T) {
	s := newTestServer(t)
	v := s.variant(t, "TEE", "10.00", 5)
	ada := s.client(t)
	ada.register("ada@example.com")
	bob := s.client(t)
	bob.register("bob@example.com")

	resp := ada.do(http.MethodPost, "/orders", checkoutBody(v, 3))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decode[map[string]placedOrder](t, resp)["order"].ID

	summaries := decode[[]query.OrderSummary](t, ada.do(http.MethodGet, "/orders", nil))
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].ItemCount)
	assert.Empty(t, decode[[]query.OrderSummary](t, bob.do(http.MethodGet, "/orders", nil)))

	resp = ada.do(http.MethodGet, "/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[order.Order](t, resp)
	require.Len(t, got.Items, 1)
	assert.Equal(t, order.StatusPending, got.Status)

	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodGet, "/orders/"+orderID, nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, s.client(t).do(http.MethodGet, "/orders", nil).StatusCode)

	resp = ada.do(http.MethodGet, "/orders/"+orderID+"/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]map[string]any](t, resp)
	require.NotEmpty(t, history)
	assert.Equal(t, order.EventOrderCreated, history[0]["event_type"])
}

// ============================================
// Checkout Session Tests
// ============================================

func TestCheckoutSession(t *testing.T) {
	s := newTestServer(t)
	v := s.variant(t, "TEE", "10.00", 5)
	c := s.client(t)

	resp := c.do(http.MethodPost, "/checkout/session", map[string]string{"email": "guest@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	c.do(http.MethodPost, "/cart", map[string]any{"variantId": v.ID, "quantity": 2})
	resp = c.do(http.MethodPost, "/checkout/session", map[string]string{"email": "guest@example.com"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decode[payment.CheckoutSession](t, resp)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://pay.test/cs_test_1", sess.URL)
	require.Len(t, s.gateway.requests, 1)
	assert.Equal(t, "guest@example.com", s.gateway.requests[0].CustomerEmail)
	assert.Empty(t, s.gateway.requests[0].UserID)
	require.Len(t, s.gateway.requests[0].Items, 1)
	assert.Equal(t, 2, s.gateway.requests[0].Items[0].Quantity)
}

func TestCheckoutSession_UsesAccountEmail(t *testing.T) {
	s := newTestServer(t)
	v := s.variant(t, "TEE", "10.00", 5)
	c := s.client(t)
	c.register("ada@example.com")
	c.do(http.MethodPost, "/cart", map[string]any{"variantId": v.ID, "quantity": 1})

	resp := c.do(http.MethodPost, "/checkout/session", map[string]string{"email": "other@example.com"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, s.gateway.requests, 1)
	assert.Equal(t, "ada@example.com", s.gateway.requests[0].CustomerEmail)
	assert.NotEmpty(t, s.gateway.requests[0].UserID)
}

// ============================================
// Webhook Tests
// ============================================

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t)
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{}}}`)

	tests := []struct {
		name       string
		signature  string
		wantStatus int
	}{
		{"missing signature", "", http.StatusBadRequest},
		{"bad signature", "t=1,v1=deadbeef", http.StatusBadRequest},
		{"test sentinel", payment.TestSignature, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/payment-webhook", bytes.NewReader(payload))
			require.NoError(t, err)
			if tt.signature != "" {
				req.Header.Set("Stripe-Signature", tt.signature)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				body := decode[map[string]any](t, resp)
				assert.Equal(t, true, body["received"])
			}
		})
	}
}

// ============================================
// Admin Tests
// ============================================

func TestAdmin_RequiresAdminRole(t *testing.T) {
	s := newTestServer(t)
	customer := s.client(t)
	customer.register("ada@example.com")
	variant := catalog.UpsertVariant{ProductName: "Tee", Name: "L", SKU: "TEE-L", Price: decimal.RequireFromString("12.50"), Stock: 3}

	assert.Equal(t, http.StatusUnauthorized, s.client(t).do(http.MethodPost, "/admin/variants", variant).StatusCode)
	assert.Equal(t, http.StatusForbidden, customer.do(http.MethodPost, "/admin/variants", variant).StatusCode)

	admin := s.client(t)
	pair, err := s.tokens.IssuePair(auth.Identity{UserID: "00000000-0000-0000-0000-000000000001", Email: "admin@example.com", Role: user.RoleAdmin})
	require.NoError(t, err)
	admin.bearer = pair.AccessToken

	resp := admin.do(http.MethodPost, "/admin/variants", variant)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[catalog.Variant](t, resp)
	assert.Equal(t, "TEE-L", created.SKU)
	assert.Equal(t, "12.50", created.Price.StringFixed(2))
}

func TestAdmin_UpdateOrderStatus(t *testing.T) {
	s := newTestServer(t)
	v := s.variant(t, "TEE", "10.00", 5)
	resp := s.client(t).do(http.MethodPost, "/orders", checkoutBody(v, 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decode[map[string]placedOrder](t, resp)["order"].ID

	admin := s.client(t)
	pair, err := s.tokens.IssuePair(auth.Identity{UserID: "00000000-0000-0000-0000-000000000001", Email: "admin@example.com", Role: user.RoleAdmin})
	require.NoError(t, err)
	admin.bearer = pair.AccessToken

	tests := []struct {
		name       string
		status     string
		wantStatus int
	}{
		{"unknown status", "teleported", http.StatusBadRequest},
		{"skips payment", "shipped", http.StatusConflict},
		{"pay", "paid", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := admin.do(http.MethodPatch, "/admin/orders/"+orderID+"/status", map[string]string{"status": tt.status})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	got := decode[order.Order](t, admin.do(http.MethodGet, "/orders/"+orderID, nil))
	assert.Equal(t, order.StatusPaid, got.Status)
}

// ============================================
// Health Tests
// ============================================

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
	}{
		{"no checks", nil, http.StatusOK},
		{"all healthy", map[string]HealthCheck{"db": func(context.Context) error { return nil }}, http.StatusOK},
		{"one down", map[string]HealthCheck{
			"db":    func(context.Context) error { return nil },
			"redis": func(context.Context) error { return errors.New("connection refused") },
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Health(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
