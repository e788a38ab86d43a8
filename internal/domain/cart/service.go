package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// VariantReader supplies the live price and stock of a variant.
type VariantReader interface {
	GetVariant(ctx context.Context, id string) (*catalog.Variant, error)
}

// Service mutates carts. User carts and guest carts live in different stores.
type Service struct {
	users   Store
	guests  Store
	catalog VariantReader
	logger  *zap.Logger
	loads   singleflight.Group
	now     func() time.Time
}

func NewService(users, guests Store, catalog VariantReader, logger *zap.Logger) *Service {
	return &Service{
		users:   users,
		guests:  guests,
		catalog: catalog,
		logger:  logger.Named("cart"),
		now:     time.Now,
	}
}

func (s *Service) storeFor(owner Owner) Store {
	if owner.IsGuest() {
		return s.guests
	}
	return s.users
}

// Load returns the owner's cart, or an empty one if nothing is stored.
// Concurrent loads for the same owner share one store round trip; each
// caller gets its own copy.
func (s *Service) Load(ctx context.Context, owner Owner) (*Cart, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}

	v, err, _ := s.loads.Do(owner.Key(), func() (any, error) {
		return s.hydrate(ctx, owner)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart).Clone(), nil
}

func (s *Service) hydrate(ctx context.Context, owner Owner) (*Cart, error) {
	c, err := s.storeFor(owner).Load(ctx, owner)
	if errors.Is(err, ErrCartNotFound) {
		return newCart(owner), nil
	}
	if err != nil {
		s.logger.Error("load cart failed", zap.String("owner", owner.Key()), zap.Error(err))
		return nil, apperr.Persistence("load cart", err)
	}
	c.Owner = owner
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now().UTC()
	if err := s.storeFor(c.Owner).Save(ctx, c); err != nil {
		if errors.Is(err, ErrCartConflict) {
			return err
		}
		s.logger.Error("save cart failed", zap.String("owner", c.Owner.Key()), zap.Error(err))
		return apperr.Persistence("save cart", err)
	}
	return nil
}

// AddItem adds quantity of a variant. An existing line is increased and
// clamped to the available stock and per-item cap. On a persistence failure
// the mutated cart is returned together with the error.
func (s *Service) AddItem(ctx context.Context, owner Owner, variantID string, quantity int) (*Cart, error) {
	if quantity < 1 || quantity > MaxQuantityPerItem {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("get variant %s: %w", variantID, err)
	}
	if quantity > variant.Stock {
		return nil, ErrExceedsStock
	}

	c, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}

	if i := c.findByVariant(variantID); i >= 0 {
		c.Items[i].Quantity = min(c.Items[i].Quantity+quantity, variant.Stock, MaxQuantityPerItem)
	} else {
		c.Items = append(c.Items, LineItem{
			ID:                uuid.New().String(),
			VariantID:         variant.ID,
			ProductName:       variant.ProductName,
			VariantName:       variant.Name,
			SKU:               variant.SKU,
			Quantity:          quantity,
			UnitPrice:         variant.Price,
			OriginalUnitPrice: variant.CompareAtPrice,
		})
	}

	if err := s.save(ctx, c); err != nil {
		return c, err
	}
	s.logger.Debug("item added", zap.String("owner", owner.Key()), zap.String("variant_id", variantID), zap.Int("quantity", quantity))
	return c, nil
}

// UpdateQuantity sets an item's quantity. Zero removes the item. A quantity
// above the live stock fails with ErrInsufficientStock and leaves the cart
// untouched.
func (s *Service) UpdateQuantity(ctx context.Context, owner Owner, itemID string, quantity int) (*Cart, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, owner, itemID)
	}
	if quantity < 0 || quantity > MaxQuantityPerItem {
		return nil, ErrInvalidQuantity
	}

	c, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	i := c.findItem(itemID)
	if i < 0 {
		return nil, ErrItemNotFound
	}

	variant, err := s.catalog.GetVariant(ctx, c.Items[i].VariantID)
	if err != nil {
		return nil, fmt.Errorf("get variant %s: %w", c.Items[i].VariantID, err)
	}
	if quantity > variant.Stock {
		return nil, ErrInsufficientStock
	}

	c.Items[i].Quantity = quantity
	if err := s.save(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}

// RemoveItem removes an item. Removing an absent item is not an error.
func (s *Service) RemoveItem(ctx context.Context, owner Owner, itemID string) (*Cart, error) {
	c, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !c.removeItem(itemID) {
		return c, nil
	}
	if err := s.save(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, owner Owner) (*Cart, error) {
	c, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return c, nil
	}
	c.Items = []LineItem{}
	if err := s.save(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}
