package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrVariantNotFound = apperr.New(apperr.KindNotFound, "variant not found")
	ErrInvalidPrice    = apperr.Validation("price must be zero or greater", "price")
	ErrInvalidStock    = apperr.Validation("stock must be zero or greater", "stock")
	ErrMissingName     = apperr.Validation("product and variant names are required", "productName", "name")
	ErrMissingSKU      = apperr.Validation("sku is required", "sku")
	ErrDuplicateSKU    = apperr.New(apperr.KindConflict, "sku already exists")
)

// Variant is a purchasable SKU of a product with its live price and stock.
type Variant struct {
	ID             string              `json:"id"`
	ProductID      string              `json:"productId"`
	ProductName    string              `json:"productName"`
	Name           string              `json:"name"`
	SKU            string              `json:"sku"`
	Price          decimal.Decimal     `json:"price"`
	CompareAtPrice decimal.NullDecimal `json:"compareAtPrice"`
	Stock          int                 `json:"stock"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Repository persists variants. Get returns ErrVariantNotFound when absent.
type Repository interface {
	Get(ctx context.Context, id string) (*Variant, error)
	Upsert(ctx context.Context, v *Variant) error
}

// UpsertVariant is the admin input for creating or replacing a variant.
type UpsertVariant struct {
	ID             string              `json:"id"`
	ProductID      string              `json:"productId"`
	ProductName    string              `json:"productName"`
	Name           string              `json:"name"`
	SKU            string              `json:"sku"`
	Price          decimal.Decimal     `json:"price"`
	CompareAtPrice decimal.NullDecimal `json:"compareAtPrice"`
	Stock          int                 `json:"stock"`
}

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger.Named("catalog")}
}

// GetVariant returns the current price and stock snapshot of a variant.
func (s *Service) GetVariant(ctx context.Context, id string) (*Variant, error) {
	if id == "" {
		return nil, ErrVariantNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Upsert(ctx context.Context, in UpsertVariant) (*Variant, error) {
	if strings.TrimSpace(in.ProductName) == "" || strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(in.SKU) == "" {
		return nil, ErrMissingSKU
	}
	if in.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if in.Stock < 0 {
		return nil, ErrInvalidStock
	}

	v := &Variant{
		ID:             in.ID,
		ProductID:      in.ProductID,
		ProductName:    in.ProductName,
		Name:           in.Name,
		SKU:            in.SKU,
		Price:          in.Price.Round(2),
		CompareAtPrice: in.CompareAtPrice,
		Stock:          in.Stock,
		UpdatedAt:      time.Now().UTC(),
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.ProductID == "" {
		v.ProductID = uuid.New().String()
	}

	if err := s.repo.Upsert(ctx, v); err != nil {
		return nil, fmt.Errorf("upsert variant %s: %w", v.ID, err)
	}
	s.logger.Info("variant upserted", zap.String("variant_id", v.ID), zap.String("sku", v.SKU), zap.Int("stock", v.Stock))
	return v, nil
}
