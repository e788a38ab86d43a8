package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/domain/guest"
	"go.uber.org/zap"
)

// GuestSessionCookie carries the anonymous cart owner's token.
const GuestSessionCookie = "guest_session"

// GuestSession resolves the guest_session cookie into a live guest token.
// Unknown or expired tokens are ignored; the handler may start a new one.
func GuestSession(guests *guest.Service, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(GuestSessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := guests.Get(r.Context(), cookie.Value)
			if err != nil {
				logger.Debug("ignoring guest session", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithGuestToken(r.Context(), sess.Token)))
		})
	}
}

// GuestToken returns the live guest token on the request, if any.
func GuestToken(ctx context.Context) string {
	token, _ := ctx.Value(GuestContextKey).(string)
	return token
}

func WithGuestToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, GuestContextKey, token)
}

// SetGuestCookie hands a new guest session to the browser.
func SetGuestCookie(w http.ResponseWriter, r *http.Request, sess *guest.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     GuestSessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearGuestCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     GuestSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
