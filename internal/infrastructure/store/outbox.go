package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxRelay publishes stored events that have not reached the broker yet,
// oldest first, and stamps published_at once the broker accepts them.
type OutboxRelay struct {
	db        *gorm.DB
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewOutboxRelay(db *gorm.DB, publisher Publisher, interval time.Duration, batchSize int, logger *zap.Logger) *OutboxRelay {
	return &OutboxRelay{
		db:        db,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.Named("outbox"),
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.PublishPending(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("outbox pass stopped early", zap.Error(err))
			}
		}
	}
}

// PublishPending ships one batch and reports how many events went out. It
// stops at the first publish failure so later events of the same aggregate
// are not delivered ahead of it.
func (r *OutboxRelay) PublishPending(ctx context.Context) (int, error) {
	var pending []EventRecord
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at, version").
		Limit(r.batchSize).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}

	sent := 0
	for _, rec := range pending {
		if err := r.publisher.Publish(ctx, rec.AggregateID, rec.toEvent()); err != nil {
			return sent, fmt.Errorf("publish %s %s: %w", rec.EventType, rec.ID, err)
		}
		err := r.db.WithContext(ctx).Model(&EventRecord{}).
			Where("id = ?", rec.ID).
			Update("published_at", r.now().UTC()).Error
		if err != nil {
			// The event goes out again next pass; consumers see a duplicate.
			return sent, fmt.Errorf("mark %s published: %w", rec.ID, err)
		}
		sent++
	}
	if sent > 0 {
		r.logger.Debug("events published", zap.Int("count", sent))
	}
	return sent, nil
}
