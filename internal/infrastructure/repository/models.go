package repository

import (
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Models lists every table this package owns, for AutoMigrate in tests.
func Models() []any {
	return []any{
		&UserModel{},
		&VariantModel{},
		&CartModel{},
		&OrderModel{},
		&OrderItemModel{},
		&PaymentModel{},
		&WebhookEventModel{},
	}
}

type UserModel struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"not null"`
	Role         string `gorm:"not null;default:customer"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) toDomain() *user.User {
	return &user.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Role:         m.Role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

type VariantModel struct {
	ID             string              `gorm:"primaryKey;type:uuid"`
	ProductID      string              `gorm:"type:uuid;index;not null"`
	ProductName    string              `gorm:"not null"`
	Name           string              `gorm:"not null"`
	SKU            string              `gorm:"uniqueIndex;not null"`
	Price          decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	CompareAtPrice decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	Stock          int                 `gorm:"not null"`
	UpdatedAt      time.Time
}

func (VariantModel) TableName() string { return "variants" }

func (m *VariantModel) toDomain() *catalog.Variant {
	return &catalog.Variant{
		ID:             m.ID,
		ProductID:      m.ProductID,
		ProductName:    m.ProductName,
		Name:           m.Name,
		SKU:            m.SKU,
		Price:          m.Price,
		CompareAtPrice: m.CompareAtPrice,
		Stock:          m.Stock,
		UpdatedAt:      m.UpdatedAt,
	}
}

type CartModel struct {
	UserID    string          `gorm:"primaryKey;type:uuid"`
	Items     []cart.LineItem `gorm:"serializer:json;type:jsonb;not null"`
	Version   int             `gorm:"not null"`
	UpdatedAt time.Time
}

func (CartModel) TableName() string { return "carts" }

type OrderModel struct {
	ID              string           `gorm:"primaryKey;type:uuid"`
	OrderNumber     string           `gorm:"uniqueIndex;not null"`
	UserID          *string          `gorm:"type:uuid;index"`
	Status          string           `gorm:"not null"`
	Subtotal        decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	Tax             decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	Shipping        decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	Total           decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	CustomerEmail   string           `gorm:"not null"`
	ShippingAddress order.Address    `gorm:"serializer:json;type:jsonb;not null"`
	BillingAddress  order.Address    `gorm:"serializer:json;type:jsonb;not null"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID"`
	Payments        []PaymentModel   `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (OrderModel) TableName() string { return "orders" }

type OrderItemModel struct {
	ID              string          `gorm:"primaryKey;type:uuid"`
	OrderID         string          `gorm:"type:uuid;index;not null"`
	VariantID       string          `gorm:"not null"`
	ProductName     string          `gorm:"not null"`
	VariantName     string          `gorm:"not null"`
	SKU             string          `gorm:"not null"`
	Quantity        int             `gorm:"not null"`
	PriceAtPurchase decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }

type PaymentModel struct {
	ID                string          `gorm:"primaryKey;type:uuid"`
	OrderID           string          `gorm:"type:uuid;index;not null"`
	Provider          string          `gorm:"not null"`
	CheckoutSessionID string
	PaymentIntentID   string          `gorm:"index"`
	Status            string          `gorm:"not null"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency          string          `gorm:"not null"`
	PaidAt            *time.Time
	CreatedAt         time.Time
}

func (PaymentModel) TableName() string { return "payments" }

func (m *PaymentModel) toDomain() order.Payment {
	return order.Payment{
		ID:                m.ID,
		OrderID:           m.OrderID,
		Provider:          m.Provider,
		CheckoutSessionID: m.CheckoutSessionID,
		PaymentIntentID:   m.PaymentIntentID,
		Status:            order.PaymentStatus(m.Status),
		Amount:            m.Amount,
		Currency:          m.Currency,
		PaidAt:            m.PaidAt,
		CreatedAt:         m.CreatedAt,
	}
}

type WebhookEventModel struct {
	ID          string `gorm:"primaryKey"`
	EventType   string `gorm:"not null"`
	ProcessedAt time.Time
}

func (WebhookEventModel) TableName() string { return "webhook_events" }

func orderToModel(o *order.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Total:           o.Total,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.UserID != "" {
		uid := o.UserID
		m.UserID = &uid
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:              it.ID,
			OrderID:         o.ID,
			VariantID:       it.VariantID,
			ProductName:     it.ProductName,
			VariantName:     it.VariantName,
			SKU:             it.SKU,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}
	return m
}

func (m *OrderModel) toDomain() *order.Order {
	o := &order.Order{
		ID:              m.ID,
		OrderNumber:     m.OrderNumber,
		Status:          order.Status(m.Status),
		Subtotal:        m.Subtotal,
		Tax:             m.Tax,
		Shipping:        m.Shipping,
		Total:           m.Total,
		CustomerEmail:   m.CustomerEmail,
		ShippingAddress: m.ShippingAddress,
		BillingAddress:  m.BillingAddress,
		Items:           make([]order.Item, 0, len(m.Items)),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.UserID != nil {
		o.UserID = *m.UserID
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, order.Item{
			ID:              it.ID,
			OrderID:         it.OrderID,
			VariantID:       it.VariantID,
			ProductName:     it.ProductName,
			VariantName:     it.VariantName,
			SKU:             it.SKU,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}
	for i := range m.Payments {
		o.Payments = append(o.Payments, m.Payments[i].toDomain())
	}
	return o
}

// isUniqueViolation matches PostgreSQL 23505 from lib/pq and gorm's
// translated duplicate-key error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isUUID guards lookups on uuid columns; Postgres rejects malformed input
// instead of matching nothing.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
