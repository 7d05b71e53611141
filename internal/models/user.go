package models

import "time"

// User is a debater or spectator known to the platform.
type User struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	ExternalID              string     `gorm:"size:128;uniqueIndex;not null" json:"external_id"`
	Username                string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	DisplayName             string     `gorm:"size:128" json:"display_name"`
	NotifyChallengeCreated  bool       `gorm:"not null" json:"notify_challenge_created"`
	NotifyChallengeAccepted bool       `gorm:"not null" json:"notify_challenge_accepted"`
	NotifyDebateStarting    bool       `gorm:"not null" json:"notify_debate_starting"`
	LastSeenAt              *time.Time `gorm:"index" json:"last_seen_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// Handle returns a printable name for notifications.
func (u User) Handle() string {
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}
