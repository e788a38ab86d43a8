package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/domain/order"
	"gorm.io/gorm"
)

// OrderRepository stores orders with their items and payments.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create writes the order row, every item row and the optional payment row
// in one transaction. Nothing is left behind if any insert fails.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, p *order.Payment) error {
	m := orderToModel(o)
	items := m.Items
	m.Items = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		if p == nil {
			return nil
		}
		pm := PaymentModel{
			ID:                p.ID,
			OrderID:           o.ID,
			Provider:          p.Provider,
			CheckoutSessionID: p.CheckoutSessionID,
			PaymentIntentID:   p.PaymentIntentID,
			Status:            string(p.Status),
			Amount:            p.Amount,
			Currency:          p.Currency,
			PaidAt:            p.PaidAt,
			CreatedAt:         p.CreatedAt,
		}
		if err := tx.Create(&pm).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	if !isUUID(id) {
		return nil, order.ErrOrderNotFound
	}
	var m OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	return m.toDomain(), nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]*order.Order, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) error {
	if !isUUID(id) {
		return order.ErrOrderNotFound
	}
	res := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) FindPaymentByIntent(ctx context.Context, intentID string) (*order.Payment, error) {
	var m PaymentModel
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", intentID).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, order.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select payment: %w", err)
	}
	p := m.toDomain()
	return &p, nil
}

func (r *OrderRepository) CompletePayment(ctx context.Context, paymentID string, paidAt time.Time, orderStatus order.Status) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pm PaymentModel
		if err := tx.Where("id = ?", paymentID).First(&pm).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return order.ErrPaymentNotFound
			}
			return fmt.Errorf("select payment: %w", err)
		}
		err := tx.Model(&PaymentModel{}).
			Where("id = ?", paymentID).
			Updates(map[string]any{"status": string(order.PaymentCompleted), "paid_at": paidAt}).Error
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		err = tx.Model(&OrderModel{}).
			Where("id = ?", pm.OrderID).
			Updates(map[string]any{"status": string(orderStatus), "updated_at": paidAt}).Error
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
}
