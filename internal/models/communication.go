package models

import (
	"time"

	"gorm.io/datatypes"
)

// SpectatorMessage is a chat line posted by a spectator while a debate is live.
type SpectatorMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DebateID  uint      `gorm:"not null;index" json:"debate_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification kinds emitted by the dispatcher.
const (
	NotificationChallengeCreated  = "challenge_created"
	NotificationChallengeAccepted = "challenge_accepted"
	NotificationDebateStarted     = "debate_started"
)

// Notification represents a push notification targeted to a specific user.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"user_id"`
	Type      string            `gorm:"size:64" json:"type"`
	Title     string            `gorm:"size:255" json:"title"`
	Message   string            `gorm:"type:text" json:"message"`
	URL       string            `gorm:"size:255" json:"url"`
	Tag       string            `gorm:"size:64;index" json:"tag"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
