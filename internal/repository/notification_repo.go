package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uint, userID uint) (models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(normaliseLimit(limit, 50)).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead flags the notification as read. Notifications of other users are reported as not found.
func (r *notificationRepository) MarkRead(ctx context.Context, id uint, userID uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.Read {
		return notification, nil
	}

	if err := r.db.WithContext(ctx).Model(&notification).Update("read", true).Error; err != nil {
		return models.Notification{}, err
	}
	notification.Read = true

	return notification, nil
}
