package dto

import (
	"time"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// UserSyncRequest creates or updates the caller's profile and notification preferences.
type UserSyncRequest struct {
	ExternalID              string `json:"external_id" validate:"omitempty,max=128"`
	Username                string `json:"username" validate:"required,min=3,max=32,alphanum"`
	DisplayName             string `json:"display_name" validate:"omitempty,max=128"`
	NotifyChallengeCreated  *bool  `json:"notify_challenge_created"`
	NotifyChallengeAccepted *bool  `json:"notify_challenge_accepted"`
	NotifyDebateStarting    *bool  `json:"notify_debate_starting"`
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		LastSeenAt:  user.LastSeenAt,
	}
}

// NewUserResponseSlice converts a slice of users.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}

// CurrentUserResponse adds the private preference fields for the caller's own profile.
type CurrentUserResponse struct {
	UserResponse
	ExternalID              string `json:"external_id"`
	NotifyChallengeCreated  bool   `json:"notify_challenge_created"`
	NotifyChallengeAccepted bool   `json:"notify_challenge_accepted"`
	NotifyDebateStarting    bool   `json:"notify_debate_starting"`
}

// NewCurrentUserResponse converts a model into the caller-facing DTO.
func NewCurrentUserResponse(user models.User) CurrentUserResponse {
	return CurrentUserResponse{
		UserResponse:            NewUserResponse(user),
		ExternalID:              user.ExternalID,
		NotifyChallengeCreated:  user.NotifyChallengeCreated,
		NotifyChallengeAccepted: user.NotifyChallengeAccepted,
		NotifyDebateStarting:    user.NotifyDebateStarting,
	}
}
