package models

import "time"

// ChallengeStatus describes the state of a debate invitation.
type ChallengeStatus string

const (
	ChallengeStatusPending  ChallengeStatus = "pending"
	ChallengeStatusAccepted ChallengeStatus = "accepted"
	ChallengeStatusDeclined ChallengeStatus = "declined"
	ChallengeStatusExpired  ChallengeStatus = "expired"
)

// Challenge is an invitation from one user to another to debate at a scheduled time.
type Challenge struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ChallengerID  uint            `gorm:"index;not null" json:"challenger_id"`
	RecipientID   uint            `gorm:"index;not null" json:"recipient_id"`
	Title         string          `gorm:"size:255;not null" json:"title"`
	ScheduledTime time.Time       `gorm:"not null" json:"scheduled_time"`
	Status        ChallengeStatus `gorm:"size:16;index;not null;default:pending" json:"status"`
	RespondedAt   *time.Time      `json:"responded_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsPending reports whether the challenge still awaits a response.
func (c Challenge) IsPending() bool {
	return c.Status == ChallengeStatusPending
}
