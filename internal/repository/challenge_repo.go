package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// ErrChallengeNotPending is returned when a response is recorded for an already answered challenge.
var ErrChallengeNotPending = errors.New("challenge is no longer pending")

// ChallengeRepository persists debate invitations.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	GetByID(ctx context.Context, id uint) (models.Challenge, error)
	ListIncoming(ctx context.Context, recipientID uint) ([]models.Challenge, error)
	ListOutgoing(ctx context.Context, challengerID uint) ([]models.Challenge, error)
	Accept(ctx context.Context, challenge *models.Challenge, debate *models.Debate, respondedAt time.Time) error
	Decline(ctx context.Context, challenge *models.Challenge, respondedAt time.Time) error
}

type challengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository constructs a challenge repository backed by GORM.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *challengeRepository) GetByID(ctx context.Context, id uint) (models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, id).Error; err != nil {
		return models.Challenge{}, err
	}
	return challenge, nil
}

func (r *challengeRepository) ListIncoming(ctx context.Context, recipientID uint) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, models.ChallengeStatusPending).
		Order("created_at DESC").
		Find(&challenges).Error
	return challenges, err
}

func (r *challengeRepository) ListOutgoing(ctx context.Context, challengerID uint) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := r.db.WithContext(ctx).
		Where("challenger_id = ?", challengerID).
		Order("created_at DESC").
		Find(&challenges).Error
	return challenges, err
}

// Accept marks the challenge accepted and creates its debate atomically.
func (r *challengeRepository) Accept(ctx context.Context, challenge *models.Challenge, debate *models.Debate, respondedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := respond(tx, challenge, models.ChallengeStatusAccepted, respondedAt); err != nil {
			return err
		}

		challengeID := challenge.ID
		debate.ChallengeID = &challengeID
		return tx.Create(debate).Error
	})
}

func (r *challengeRepository) Decline(ctx context.Context, challenge *models.Challenge, respondedAt time.Time) error {
	return respond(r.db.WithContext(ctx), challenge, models.ChallengeStatusDeclined, respondedAt)
}

func respond(tx *gorm.DB, challenge *models.Challenge, status models.ChallengeStatus, respondedAt time.Time) error {
	result := tx.Model(&models.Challenge{}).
		Where("id = ? AND status = ?", challenge.ID, models.ChallengeStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": respondedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChallengeNotPending
	}

	challenge.Status = status
	challenge.RespondedAt = &respondedAt
	return nil
}
