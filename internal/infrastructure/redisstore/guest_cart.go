package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

// GuestCartStore keeps anonymous carts under guest_cart:<token>. Saves are
// last write wins; every save refreshes the expiry.
type GuestCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuestCartStore(client *redis.Client, ttl time.Duration) *GuestCartStore {
	return &GuestCartStore{client: client, ttl: ttl}
}

func (s *GuestCartStore) Load(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	var c cart.Cart
	err := getJSON(ctx, s.client, guestCartKey(owner.GuestToken), &c)
	if errors.Is(err, errMiss) {
		return nil, cart.ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []cart.LineItem{}
	}
	return &c, nil
}

func (s *GuestCartStore) Save(ctx context.Context, c *cart.Cart) error {
	if c.Owner.GuestToken == "" {
		return cart.ErrNoOwner
	}
	c.Version++
	if err := setJSON(ctx, s.client, guestCartKey(c.Owner.GuestToken), c, s.ttl); err != nil {
		c.Version--
		return err
	}
	return nil
}

func (s *GuestCartStore) Delete(ctx context.Context, owner cart.Owner) error {
	return del(ctx, s.client, guestCartKey(owner.GuestToken))
}

func guestCartKey(token string) string {
	return fmt.Sprintf("guest_cart:%s", token)
}
