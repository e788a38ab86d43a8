package guest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSessionNotFound = apperr.New(apperr.KindNotFound, "guest session not found")

// Session is an anonymous cart owner tracked by an opaque token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions. Get returns ErrSessionNotFound when absent.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

type Service struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{store: store, ttl: ttl, logger: logger.Named("guest"), now: time.Now}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Start issues a new guest session.
func (s *Service) Start(ctx context.Context) (*Session, error) {
	sess := &Session{
		Token:     uuid.New().String(),
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, apperr.Persistence("start guest session", err)
	}
	return sess, nil
}

// Get returns a live session. Expired sessions are reported as not found.
func (s *Service) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, apperr.Persistence("get guest session", err)
	}
	if sess.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// End deletes the session.
func (s *Service) End(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("end guest session: %w", err)
	}
	s.logger.Debug("guest session ended", zap.String("token", token))
	return nil
}
