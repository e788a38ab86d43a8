package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-storefront/internal/domain/guest"
	"github.com/redis/go-redis/v9"
)

// GuestSessionStore keeps guest sessions under guest_session:<token> and lets
// Redis expire them at ExpiresAt.
type GuestSessionStore struct {
	client *redis.Client
}

func NewGuestSessionStore(client *redis.Client) *GuestSessionStore {
	return &GuestSessionStore{client: client}
}

func (s *GuestSessionStore) Put(ctx context.Context, sess *guest.Session) error {
	ttl := ttlUntil(sess.ExpiresAt)
	if ttl == 0 {
		return del(ctx, s.client, guestSessionKey(sess.Token))
	}
	return setJSON(ctx, s.client, guestSessionKey(sess.Token), sess, ttl)
}

func (s *GuestSessionStore) Get(ctx context.Context, token string) (*guest.Session, error) {
	var sess guest.Session
	err := getJSON(ctx, s.client, guestSessionKey(token), &sess)
	if errors.Is(err, errMiss) {
		return nil, guest.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *GuestSessionStore) Delete(ctx context.Context, token string) error {
	return del(ctx, s.client, guestSessionKey(token))
}

func guestSessionKey(token string) string {
	return fmt.Sprintf("guest_session:%s", token)
}
