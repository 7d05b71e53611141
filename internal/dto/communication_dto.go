package dto

import (
	"time"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// Live room event types.
const (
	LiveEventSpectatorMessage = "spectator.message"
	LiveEventDebateStarted    = "debate.started"
	LiveEventDebateMessage    = "debate.message"
	LiveEventDebateAdvanced   = "debate.advanced"
	LiveEventDebateCompleted  = "debate.completed"
	LiveEventViewersUpdated   = "viewers.updated"
)

// SpectatorMessageRequest is the payload sent by spectators into a live room.
type SpectatorMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=1000"`
}

// SpectatorMessageResponse is the serialized representation of a spectator chat line.
type SpectatorMessageResponse struct {
	ID                uint      `json:"id"`
	DebateID          uint      `json:"debate_id"`
	AuthorID          uint      `json:"author_id"`
	AuthorUsername    string    `json:"author_username,omitempty"`
	AuthorDisplayName string    `json:"author_display_name,omitempty"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewSpectatorMessageResponse converts a model into a DTO.
func NewSpectatorMessageResponse(message models.SpectatorMessage) SpectatorMessageResponse {
	response := SpectatorMessageResponse{
		ID:        message.ID,
		DebateID:  message.DebateID,
		AuthorID:  message.AuthorID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
	if message.Author != nil {
		response.AuthorUsername = message.Author.Username
		response.AuthorDisplayName = message.Author.DisplayName
	}
	return response
}

// NewSpectatorMessageResponseSlice converts a slice of models into DTOs.
func NewSpectatorMessageResponseSlice(messages []models.SpectatorMessage) []SpectatorMessageResponse {
	out := make([]SpectatorMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewSpectatorMessageResponse(message))
	}
	return out
}

// LiveEvent is pushed to every websocket client watching a debate.
type LiveEvent struct {
	Type             string                    `json:"type"`
	DebateID         uint                      `json:"debate_id"`
	Debate           *DebateResponse           `json:"debate,omitempty"`
	Message          *DebateMessageResponse    `json:"message,omitempty"`
	SpectatorMessage *SpectatorMessageResponse `json:"spectator_message,omitempty"`
	ViewerCount      *int                      `json:"viewer_count,omitempty"`
	SentAt           time.Time                 `json:"sent_at"`
}

// PushPayload is what the dispatcher hands to the notification sink.
type PushPayload struct {
	RecipientID uint              `json:"recipient_id" validate:"required"`
	Type        string            `json:"type" validate:"required,max=64"`
	Title       string            `json:"title" validate:"required,max=255"`
	Body        string            `json:"body" validate:"required,min=1,max=2000"`
	URL         string            `json:"url" validate:"omitempty,max=255"`
	Tag         string            `json:"tag" validate:"omitempty,max=64"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint              `json:"id"`
	UserID    uint              `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	URL       string            `json:"url,omitempty"`
	Tag       string            `json:"tag,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	response := NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Title:     model.Title,
		Message:   model.Message,
		URL:       model.URL,
		Tag:       model.Tag,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if len(model.Metadata) > 0 {
		response.Metadata = make(map[string]string, len(model.Metadata))
		for key, value := range model.Metadata {
			if str, ok := value.(string); ok {
				response.Metadata[key] = str
			}
		}
	}
	return response
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
