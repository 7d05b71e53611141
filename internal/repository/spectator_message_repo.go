package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// SpectatorMessageRepository persists live room chat for history.
type SpectatorMessageRepository interface {
	Save(ctx context.Context, message *models.SpectatorMessage) error
	ListByDebate(ctx context.Context, debateID uint, before time.Time, limit int) ([]models.SpectatorMessage, error)
}

type spectatorMessageRepository struct {
	db *gorm.DB
}

// NewSpectatorMessageRepository constructs a spectator chat repository backed by GORM.
func NewSpectatorMessageRepository(db *gorm.DB) SpectatorMessageRepository {
	return &spectatorMessageRepository{db: db}
}

// Save stores the message and attaches its author when the user is known.
func (r *spectatorMessageRepository) Save(ctx context.Context, message *models.SpectatorMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return err
	}

	var author models.User
	err := r.db.WithContext(ctx).First(&author, message.AuthorID).Error
	switch {
	case err == nil:
		message.Author = &author
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return nil
}

// ListByDebate returns the newest messages before the cursor, oldest first.
func (r *spectatorMessageRepository) ListByDebate(ctx context.Context, debateID uint, before time.Time, limit int) ([]models.SpectatorMessage, error) {
	limit = normaliseLimit(limit, 50)

	query := r.db.WithContext(ctx).Preload("Author").Where("debate_id = ?", debateID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.SpectatorMessage
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
