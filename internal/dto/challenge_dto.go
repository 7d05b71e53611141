package dto

import (
	"time"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// ChallengeCreateRequest invites another user to debate.
type ChallengeCreateRequest struct {
	RecipientID   uint      `json:"recipient_id" validate:"required"`
	Title         string    `json:"title" validate:"required,min=3,max=255"`
	ScheduledTime time.Time `json:"scheduled_time" validate:"required"`
}

// ChallengeResponse is the serialized representation of a challenge.
type ChallengeResponse struct {
	ID            uint                   `json:"id"`
	ChallengerID  uint                   `json:"challenger_id"`
	RecipientID   uint                   `json:"recipient_id"`
	Title         string                 `json:"title"`
	ScheduledTime time.Time              `json:"scheduled_time"`
	Status        models.ChallengeStatus `json:"status"`
	RespondedAt   *time.Time             `json:"responded_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewChallengeResponse converts a model into a DTO.
func NewChallengeResponse(challenge models.Challenge) ChallengeResponse {
	return ChallengeResponse{
		ID:            challenge.ID,
		ChallengerID:  challenge.ChallengerID,
		RecipientID:   challenge.RecipientID,
		Title:         challenge.Title,
		ScheduledTime: challenge.ScheduledTime,
		Status:        challenge.Status,
		RespondedAt:   challenge.RespondedAt,
		CreatedAt:     challenge.CreatedAt,
	}
}

// NewChallengeResponseSlice converts a slice of models into DTOs.
func NewChallengeResponseSlice(items []models.Challenge) []ChallengeResponse {
	out := make([]ChallengeResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewChallengeResponse(item))
	}
	return out
}

// ChallengeAcceptResponse returns the accepted challenge and the debate it created.
type ChallengeAcceptResponse struct {
	Challenge ChallengeResponse `json:"challenge"`
	Debate    DebateResponse    `json:"debate"`
}
