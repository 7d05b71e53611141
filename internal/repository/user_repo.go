package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// UserRepository looks up and maintains platform users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	TouchLastSeen(ctx context.Context, id uint, at time.Time) error
	ListSeenSince(ctx context.Context, since time.Time, excludeID uint, limit int) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Upsert inserts the user or overwrites every column of the row with the same primary key.
func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// TouchLastSeen stamps the user's presence. It returns gorm.ErrRecordNotFound
// when no such user exists.
func (r *userRepository) TouchLastSeen(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_seen_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListSeenSince returns users whose last heartbeat is after since, most recent first.
func (r *userRepository) ListSeenSince(ctx context.Context, since time.Time, excludeID uint, limit int) ([]models.User, error) {
	query := r.db.WithContext(ctx).Where("last_seen_at > ?", since)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var users []models.User
	if err := query.
		Order("last_seen_at DESC").
		Order("id ASC").
		Limit(normaliseLimit(limit, 100)).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
