package dto

import (
	"time"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// RoundDuration is how long the side on turn has before the sweep forces an advance.
const RoundDuration = 60 * time.Second

// DebateMessageRequest is the payload a participant posts to take their turn.
type DebateMessageRequest struct {
	Round   models.DebateRound `json:"round" validate:"required,oneof=openingRemarks point1 point2 point3 closingRemarks"`
	Content string             `json:"content" validate:"required,min=1,max=5000"`
}

// DebateResponse is the serialized representation of a debate.
type DebateResponse struct {
	ID                 uint                `json:"id"`
	Title              string              `json:"title"`
	Participant1ID     uint                `json:"participant1_id"`
	Participant2ID     uint                `json:"participant2_id"`
	ChallengeID        *uint               `json:"challenge_id,omitempty"`
	Status             models.DebateStatus `json:"status"`
	ScheduledStartTime time.Time           `json:"scheduled_start_time"`
	ActualStartTime    *time.Time          `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time          `json:"actual_end_time,omitempty"`
	CurrentTurn        models.DebateTurn   `json:"current_turn"`
	CurrentRound       models.DebateRound  `json:"current_round"`
	RoundStartTime     *time.Time          `json:"round_start_time,omitempty"`
	RemainingSeconds   int                 `json:"remaining_seconds"`
	ViewerCount        int                 `json:"viewer_count"`
}

// NewDebateResponse converts a model into a DTO, computing the time left for the current turn.
func NewDebateResponse(debate models.Debate, now time.Time) DebateResponse {
	return DebateResponse{
		ID:                 debate.ID,
		Title:              debate.Title,
		Participant1ID:     debate.Participant1ID,
		Participant2ID:     debate.Participant2ID,
		ChallengeID:        debate.ChallengeID,
		Status:             debate.Status,
		ScheduledStartTime: debate.ScheduledStartTime,
		ActualStartTime:    debate.ActualStartTime,
		ActualEndTime:      debate.ActualEndTime,
		CurrentTurn:        debate.CurrentTurn,
		CurrentRound:       debate.CurrentRound,
		RoundStartTime:     debate.RoundStartTime,
		RemainingSeconds:   RemainingSeconds(debate, now),
		ViewerCount:        debate.ViewerCount,
	}
}

// NewDebateResponseSlice converts a slice of models into DTOs.
func NewDebateResponseSlice(debates []models.Debate, now time.Time) []DebateResponse {
	out := make([]DebateResponse, 0, len(debates))
	for _, debate := range debates {
		out = append(out, NewDebateResponse(debate, now))
	}
	return out
}

// RemainingSeconds returns the whole seconds left on the current turn, zero when not live.
func RemainingSeconds(debate models.Debate, now time.Time) int {
	if !debate.IsLive() || debate.RoundStartTime == nil {
		return 0
	}
	left := RoundDuration - now.Sub(*debate.RoundStartTime)
	if left <= 0 {
		return 0
	}
	return int(left.Round(time.Second) / time.Second)
}

// DebateMessageResponse is the serialized representation of a ledger entry.
type DebateMessageResponse struct {
	ID                uint               `json:"id"`
	DebateID          uint               `json:"debate_id"`
	AuthorID          uint               `json:"author_id"`
	AuthorUsername    string             `json:"author_username,omitempty"`
	AuthorDisplayName string             `json:"author_display_name,omitempty"`
	Round             models.DebateRound `json:"round"`
	Order             int                `json:"order"`
	Content           string             `json:"content"`
	Timestamp         time.Time          `json:"timestamp"`
}

// NewDebateMessageResponse converts a model into a DTO.
func NewDebateMessageResponse(message models.DebateMessage) DebateMessageResponse {
	response := DebateMessageResponse{
		ID:        message.ID,
		DebateID:  message.DebateID,
		AuthorID:  message.AuthorID,
		Round:     message.Round,
		Order:     message.Order,
		Content:   message.Content,
		Timestamp: message.Timestamp,
	}
	if message.Author != nil {
		response.AuthorUsername = message.Author.Username
		response.AuthorDisplayName = message.Author.DisplayName
	}
	return response
}

// NewDebateMessageResponseSlice converts a slice of models into DTOs.
func NewDebateMessageResponseSlice(messages []models.DebateMessage) []DebateMessageResponse {
	out := make([]DebateMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewDebateMessageResponse(message))
	}
	return out
}

// SubmitMessageResponse carries the stored message and the debate state after the turn.
type SubmitMessageResponse struct {
	Message DebateMessageResponse `json:"message"`
	Debate  DebateResponse        `json:"debate"`
}

// ViewerPresenceRequest identifies an anonymous viewer. Authenticated viewers send nothing.
type ViewerPresenceRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,min=8,max=64"`
}

// PresenceResponse reports the live viewer count after a heartbeat or departure.
type PresenceResponse struct {
	DebateID          uint   `json:"debate_id"`
	ViewerCount       int    `json:"viewer_count"`
	HeartbeatInterval int    `json:"heartbeat_interval_seconds"`
	SessionID         string `json:"session_id,omitempty"`
}

// SweepReport summarises a sweep pass.
type SweepReport struct {
	StartedAt         time.Time `json:"started_at"`
	DurationMillis    int64     `json:"duration_ms"`
	Promoted          int       `json:"promoted"`
	TimedOut          int       `json:"timed_out"`
	PresenceRefreshed int       `json:"presence_refreshed"`
	Skipped           int       `json:"skipped"`
	Failures          int       `json:"failures"`
}
