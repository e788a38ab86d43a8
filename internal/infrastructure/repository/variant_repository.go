package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-storefront/internal/domain/catalog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VariantRepository stores purchasable variants with live price and stock.
type VariantRepository struct {
	db *gorm.DB
}

func NewVariantRepository(db *gorm.DB) *VariantRepository {
	return &VariantRepository{db: db}
}

func (r *VariantRepository) Get(ctx context.Context, id string) (*catalog.Variant, error) {
	if !isUUID(id) {
		return nil, catalog.ErrVariantNotFound
	}
	var m VariantModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select variant: %w", err)
	}
	return m.toDomain(), nil
}

// Upsert inserts the variant or replaces every mutable column when the id exists.
func (r *VariantRepository) Upsert(ctx context.Context, v *catalog.Variant) error {
	m := VariantModel{
		ID:             v.ID,
		ProductID:      v.ProductID,
		ProductName:    v.ProductName,
		Name:           v.Name,
		SKU:            v.SKU,
		Price:          v.Price,
		CompareAtPrice: v.CompareAtPrice,
		Stock:          v.Stock,
		UpdatedAt:      v.UpdatedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id", "product_name", "name", "sku", "price", "compare_at_price", "stock", "updated_at",
		}),
	}).Create(&m).Error
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrDuplicateSKU
		}
		return fmt.Errorf("upsert variant: %w", err)
	}
	return nil
}
