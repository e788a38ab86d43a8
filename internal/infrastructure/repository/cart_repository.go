package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"gorm.io/gorm"
)

// CartRepository stores signed-in users' carts. Writes are guarded by the
// version column so two concurrent saves of the same cart cannot both win.
type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Load(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	var m CartModel
	err := r.db.WithContext(ctx).Where("user_id = ?", owner.UserID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cart.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}
	items := m.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return &cart.Cart{
		Owner:     cart.UserOwner(m.UserID),
		Items:     items,
		UpdatedAt: m.UpdatedAt,
		Version:   m.Version,
	}, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	if c.Owner.UserID == "" {
		return cart.ErrNoOwner
	}
	items := c.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	now := c.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if c.Version == 0 {
		m := CartModel{UserID: c.Owner.UserID, Items: items, Version: 1, UpdatedAt: now}
		if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
			if isUniqueViolation(err) {
				return cart.ErrCartConflict
			}
			return fmt.Errorf("insert cart: %w", err)
		}
		c.Version = 1
		return nil
	}

	// Map updates skip the json serializer on CartModel.Items.
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	res := r.db.WithContext(ctx).
		Model(&CartModel{}).
		Where("user_id = ? AND version = ?", c.Owner.UserID, c.Version).
		Updates(map[string]any{
			"items":      string(raw),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("update cart: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return cart.ErrCartConflict
	}
	c.Version++
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, owner cart.Owner) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", owner.UserID).Delete(&CartModel{}).Error
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
