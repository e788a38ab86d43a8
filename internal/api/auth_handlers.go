package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/user"
	"go.uber.org/zap"
)

const (
	refreshTokenCookie = "refresh_token"
	sessionIDCookie    = "session_id"
	refreshCookiePath  = "/auth"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	users      *user.Service
	tokens     *auth.TokenService
	sessions   auth.SessionStore
	cmdHandler *command.Handler
	logger     *zap.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(
	users *user.Service,
	tokens *auth.TokenService,
	sessions auth.SessionStore,
	cmdHandler *command.Handler,
	logger *zap.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		cmdHandler: cmdHandler,
		logger:     logger.Named("auth"),
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Register handles user registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	newUser, err := h.users.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.signIn(w, r, newUser); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{
		User:    newUserResponse(newUser),
		Message: "Registration successful",
	})
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.signIn(w, r, u); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{
		User:    newUserResponse(u),
		Message: "Login successful",
	})
}

// Logout handles user logout. It succeeds even without a session.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionIDCookie); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("failed to delete session", zap.Error(err))
		}
	}

	h.clearAuthCookies(w, r)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Refresh rotates the token pair. The presented refresh token must match the
// stored session, which is then replaced.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || refreshCookie.Value == "" {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ParseRefresh(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w, r)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	sess, err := h.sessions.Get(r.Context(), claims.ID)
	if err != nil {
		h.clearAuthCookies(w, r)
		if errors.Is(err, auth.ErrSessionNotFound) {
			respondJSONError(w, "Session not found", http.StatusUnauthorized)
			return
		}
		respondError(w, h.logger, err)
		return
	}
	if !sess.Matches(refreshCookie.Value) || sess.UserID != claims.UserID {
		h.clearAuthCookies(w, r)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		h.clearAuthCookies(w, r)
		respondJSONError(w, "User not found", http.StatusUnauthorized)
		return
	}

	if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
		h.logger.Warn("failed to delete rotated session", zap.Error(err))
	}
	if err := h.setAuthCookies(w, r, u); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Token refreshed",
	})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(u))
}

// Helper methods

// signIn issues cookies for u, then folds any guest cart into theirs.
func (h *AuthHandlers) signIn(w http.ResponseWriter, r *http.Request, u *user.User) error {
	if err := h.setAuthCookies(w, r, u); err != nil {
		return err
	}

	cookie, err := r.Cookie(middleware.GuestSessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	h.cmdHandler.MergeGuestSession(r.Context(), command.MergeGuestSession{
		GuestToken: cookie.Value,
		UserID:     u.ID,
	})
	middleware.ClearGuestCookie(w, r)
	return nil
}

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, u *user.User) error {
	pair, err := h.tokens.IssuePair(auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return err
	}

	// Store session with hashed refresh token
	if err := h.sessions.Put(r.Context(), auth.NewSession(pair, u.ID, r.RemoteAddr, r.UserAgent())); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     sessionIDCookie,
		Value:    pair.RefreshID,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter, r *http.Request) {
	for _, c := range []struct{ name, path string }{
		{middleware.AccessTokenCookie, "/"},
		{refreshTokenCookie, refreshCookiePath},
		{sessionIDCookie, "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
		})
	}
}
