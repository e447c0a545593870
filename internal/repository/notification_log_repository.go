package repository

import (
	"context"

	"gorm.io/gorm"

	"maskan/internal/model"
)

// NotificationLogRepository defines notification log persistence operations.
type NotificationLogRepository interface {
	Create(ctx context.Context, log *model.NotificationLog) error
	CreateBatch(ctx context.Context, logs []model.NotificationLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.NotificationLog, error)
}

type notificationLogRepository struct {
	db *gorm.DB
}

// NewNotificationLogRepository creates a new notification log repository.
func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

// Create creates a new notification log entry.
func (r *notificationLogRepository) Create(ctx context.Context, log *model.NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateBatch creates multiple notification log entries in a single transaction.
func (r *notificationLogRepository) CreateBatch(ctx context.Context, logs []model.NotificationLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

// ListByUser returns the newest entries for a user.
func (r *notificationLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.NotificationLog, error) {
	logs := make([]model.NotificationLog, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
