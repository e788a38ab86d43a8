package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// WebhookEventRepository records provider event ids that were handled, so a
// redelivered event can be recognised.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Processed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&WebhookEventModel{}).Where("id = ?", eventID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("select webhook event: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed is idempotent; recording the same id twice is not an error.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) error {
	m := WebhookEventModel{ID: eventID, EventType: eventType, ProcessedAt: at}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}
