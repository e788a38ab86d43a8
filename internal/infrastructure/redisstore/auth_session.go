package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/redis/go-redis/v9"
)

// AuthSessionStore keeps refresh-token sessions under auth_session:<id>.
type AuthSessionStore struct {
	client *redis.Client
}

func NewAuthSessionStore(client *redis.Client) *AuthSessionStore {
	return &AuthSessionStore{client: client}
}

func (s *AuthSessionStore) Put(ctx context.Context, sess *auth.Session) error {
	ttl := ttlUntil(sess.ExpiresAt)
	if ttl == 0 {
		return del(ctx, s.client, authSessionKey(sess.ID))
	}
	return setJSON(ctx, s.client, authSessionKey(sess.ID), sess, ttl)
}

func (s *AuthSessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	var sess auth.Session
	err := getJSON(ctx, s.client, authSessionKey(id), &sess)
	if errors.Is(err, errMiss) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *AuthSessionStore) Delete(ctx context.Context, id string) error {
	return del(ctx, s.client, authSessionKey(id))
}

func authSessionKey(id string) string {
	return fmt.Sprintf("auth_session:%s", id)
}
