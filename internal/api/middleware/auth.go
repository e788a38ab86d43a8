package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/auth"
)

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "access_token"

var (
	ErrAuthRequired = apperr.New(apperr.KindUnauthenticated, "authentication required")
	ErrInvalidToken = apperr.New(apperr.KindUnauthenticated, "invalid or expired token")
	ErrForbidden    = apperr.New(apperr.KindForbidden, "insufficient role")
)

func respondError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": apperr.PublicMessage(err)})
}

// ExtractToken returns the access token from the cookie, else from a bearer
// Authorization header.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

type contextKey string

const (
	UserContextKey  contextKey = "user"
	GuestContextKey contextKey = "guest"
)

// claimsFrom resolves the request's access token. A missing token is
// ErrAuthRequired; anything unparseable is ErrInvalidToken.
func claimsFrom(tokens *auth.TokenService, r *http.Request) (*auth.Claims, error) {
	raw := ExtractToken(r)
	if raw == "" {
		return nil, ErrAuthRequired
	}
	claims, err := tokens.ParseAccess(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := claimsFrom(tokens, r)
			if err != nil {
				respondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// OptionalAuthMiddleware attaches claims when a valid token is present. Bad
// tokens are ignored so the request falls back to the guest identity.
func OptionalAuthMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := claimsFrom(tokens, r); err == nil {
				r = r.WithContext(WithUser(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole runs after AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				respondError(w, ErrAuthRequired)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				respondError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext retrieves user claims from the request context
func GetUserFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok
}

// GetUserID is empty for anonymous requests.
func GetUserID(ctx context.Context) string {
	if claims, ok := GetUserFromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}

// WithUser returns ctx carrying claims.
func WithUser(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}
