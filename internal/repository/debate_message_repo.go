package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// DebateMessageRepository is the append-only ledger of participant messages.
type DebateMessageRepository interface {
	Append(ctx context.Context, message *models.DebateMessage, expected, next models.Debate) error
	ListByDebate(ctx context.Context, debateID uint) ([]models.DebateMessage, error)
}

type debateMessageRepository struct {
	db *gorm.DB
}

// NewDebateMessageRepository constructs a ledger backed by GORM.
func NewDebateMessageRepository(db *gorm.DB) DebateMessageRepository {
	return &debateMessageRepository{db: db}
}

// Append stores the message with the next order for its round and moves the debate from
// expected to next in the same transaction. ErrStaleDebate rolls both back.
func (r *debateMessageRepository) Append(ctx context.Context, message *models.DebateMessage, expected, next models.Debate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyTransition(tx, expected, next); err != nil {
			return err
		}

		count, err := countByRound(tx, message.DebateID, message.Round)
		if err != nil {
			return err
		}

		message.Order = int(count)
		return tx.Create(message).Error
	})
}

func (r *debateMessageRepository) ListByDebate(ctx context.Context, debateID uint) ([]models.DebateMessage, error) {
	var messages []models.DebateMessage
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("debate_id = ?", debateID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func countByRound(tx *gorm.DB, debateID uint, round models.DebateRound) (int64, error) {
	var count int64
	err := tx.Model(&models.DebateMessage{}).
		Where("debate_id = ? AND round = ?", debateID, round).
		Count(&count).Error
	return count, err
}
