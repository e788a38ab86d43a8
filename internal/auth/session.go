package auth

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is a server-side record of an issued refresh token. Only the hash
// of the token is kept.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	RefreshTokenHash string    `json:"refreshTokenHash"`
	ExpiresAt        time.Time `json:"expiresAt"`
	CreatedAt        time.Time `json:"createdAt"`
	IPAddress        string    `json:"ipAddress"`
	UserAgent        string    `json:"userAgent"`
}

// SessionStore persists refresh sessions. Get returns ErrSessionNotFound
// when absent or expired.
type SessionStore interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// NewSession builds the session record for a freshly issued pair.
func NewSession(pair *TokenPair, userID, ip, userAgent string) *Session {
	return &Session{
		ID:               pair.RefreshID,
		UserID:           userID,
		RefreshTokenHash: HashToken(pair.RefreshToken),
		ExpiresAt:        pair.RefreshExpiresAt,
		CreatedAt:        time.Now().UTC(),
		IPAddress:        ip,
		UserAgent:        userAgent,
	}
}

// Matches reports whether token is the refresh token this session was issued for.
func (s *Session) Matches(token string) bool {
	return s.RefreshTokenHash == HashToken(token)
}
