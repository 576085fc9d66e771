// File: internal/dispatch/repository.go
package dispatch

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vamarket_backend/internal/common"
)

// Repository persists scheduled notification intents.
type Repository interface {
	Create(ctx context.Context, sn *ScheduledNotification) error
	ListUpcoming(ctx context.Context, page, pageSize int) ([]ScheduledNotification, *common.Pagination, error)
}

// GORMRepository implements the Repository interface using GORM.
type GORMRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM scheduled-notification repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

// Create inserts a scheduled notification record.
func (r *GORMRepository) Create(ctx context.Context, sn *ScheduledNotification) error {
	if err := r.db.WithContext(ctx).Create(sn).Error; err != nil {
		return fmt.Errorf("failed to create scheduled notification: %w", err)
	}
	return nil
}

// ListUpcoming returns scheduled intents that have not yet fired, soonest
// first.
func (r *GORMRepository) ListUpcoming(ctx context.Context, page, pageSize int) ([]ScheduledNotification, *common.Pagination, error) {
	query := r.db.WithContext(ctx).Model(&ScheduledNotification{}).
		Where("status = ? AND scheduled_for > ?", StatusScheduled, time.Now().UTC())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("counting scheduled notifications failed: %w", err)
	}
	pagination := common.NewPagination(total, page, pageSize)

	offset := (page - 1) * pageSize
	if page <= 0 {
		offset = 0
	}

	var scheduled []ScheduledNotification
	err := query.Order("scheduled_for ASC").
		Limit(pageSize).
		Offset(offset).
		Find(&scheduled).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fetching scheduled notifications failed: %w", err)
	}
	return scheduled, pagination, nil
}
