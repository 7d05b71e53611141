package models

import (
	"strconv"
	"time"
)

// DebateStatus describes the lifecycle state of a debate.
type DebateStatus string

// Debate lifecycle states. Completed and cancelled are terminal.
const (
	DebateStatusScheduled DebateStatus = "scheduled"
	DebateStatusLive      DebateStatus = "live"
	DebateStatusCompleted DebateStatus = "completed"
	DebateStatusCancelled DebateStatus = "cancelled"
)

// IsTerminal reports whether no transition can leave the status.
func (s DebateStatus) IsTerminal() bool {
	return s == DebateStatusCompleted || s == DebateStatusCancelled
}

// DebateTurn identifies which side may currently post.
type DebateTurn string

const (
	TurnParticipant1 DebateTurn = "participant1"
	TurnParticipant2 DebateTurn = "participant2"
)

// Other returns the opposite side.
func (t DebateTurn) Other() DebateTurn {
	if t == TurnParticipant1 {
		return TurnParticipant2
	}
	return TurnParticipant1
}

// Valid reports whether the turn is one of the two known sides.
func (t DebateTurn) Valid() bool {
	return t == TurnParticipant1 || t == TurnParticipant2
}

// DebateRound is one of the fixed debate segments.
type DebateRound string

const (
	RoundOpeningRemarks DebateRound = "openingRemarks"
	RoundPoint1         DebateRound = "point1"
	RoundPoint2         DebateRound = "point2"
	RoundPoint3         DebateRound = "point3"
	RoundClosingRemarks DebateRound = "closingRemarks"
)

// RoundOrder is the fixed progression every debate follows.
var RoundOrder = []DebateRound{
	RoundOpeningRemarks,
	RoundPoint1,
	RoundPoint2,
	RoundPoint3,
	RoundClosingRemarks,
}

// Index returns the round position in RoundOrder, or -1 when unknown.
func (r DebateRound) Index() int {
	for i, round := range RoundOrder {
		if round == r {
			return i
		}
	}
	return -1
}

// Valid reports whether the round belongs to RoundOrder.
func (r DebateRound) Valid() bool {
	return r.Index() >= 0
}

// IsFinal reports whether the round is the last one.
func (r DebateRound) IsFinal() bool {
	return r.Index() == len(RoundOrder)-1
}

// Next returns the following round. The boolean is false for the final or an unknown round.
func (r DebateRound) Next() (DebateRound, bool) {
	idx := r.Index()
	if idx < 0 || idx >= len(RoundOrder)-1 {
		return r, false
	}
	return RoundOrder[idx+1], true
}

// Debate is a scheduled or running two-party debate.
type Debate struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	Title              string       `gorm:"size:255;not null" json:"title"`
	Participant1ID     uint         `gorm:"index;not null" json:"participant1_id"`
	Participant2ID     uint         `gorm:"index;not null" json:"participant2_id"`
	ChallengeID        *uint        `gorm:"uniqueIndex" json:"challenge_id,omitempty"`
	Status             DebateStatus `gorm:"size:16;index;not null;default:scheduled" json:"status"`
	ScheduledStartTime time.Time    `gorm:"index;not null" json:"scheduled_start_time"`
	ActualStartTime    *time.Time   `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time   `json:"actual_end_time,omitempty"`
	CurrentTurn        DebateTurn   `gorm:"size:16;not null;default:participant1" json:"current_turn"`
	CurrentRound       DebateRound  `gorm:"size:32;not null;default:openingRemarks" json:"current_round"`
	RoundStartTime     *time.Time   `json:"round_start_time,omitempty"`
	ViewerCount        int          `gorm:"not null;default:0" json:"viewer_count"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// IsLive reports whether messages may currently be posted.
func (d Debate) IsLive() bool {
	return d.Status == DebateStatusLive
}

// SideOf returns which side the user debates on.
func (d Debate) SideOf(userID uint) (DebateTurn, bool) {
	switch userID {
	case 0:
		return "", false
	case d.Participant1ID:
		return TurnParticipant1, true
	case d.Participant2ID:
		return TurnParticipant2, true
	default:
		return "", false
	}
}

// ParticipantFor returns the user id sitting on the given side.
func (d Debate) ParticipantFor(turn DebateTurn) uint {
	if turn == TurnParticipant2 {
		return d.Participant2ID
	}
	return d.Participant1ID
}

// Opponent returns the other participant, or zero when the user does not debate here.
func (d Debate) Opponent(userID uint) uint {
	side, ok := d.SideOf(userID)
	if !ok {
		return 0
	}
	return d.ParticipantFor(side.Other())
}

// StartedAt returns the actual start time, falling back to creation time.
func (d Debate) StartedAt() time.Time {
	if d.ActualStartTime != nil {
		return *d.ActualStartTime
	}
	return d.CreatedAt
}

// DebateMessage is an append-only statement posted by a participant.
type DebateMessage struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	DebateID  uint        `gorm:"not null;index;uniqueIndex:idx_debate_round_order,priority:1" json:"debate_id"`
	AuthorID  uint        `gorm:"not null;index" json:"author_id"`
	Author    *User       `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Round     DebateRound `gorm:"size:32;not null;uniqueIndex:idx_debate_round_order,priority:2" json:"round"`
	Order     int         `gorm:"column:sequence;not null;uniqueIndex:idx_debate_round_order,priority:3" json:"order"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time   `gorm:"not null" json:"timestamp"`
	CreatedAt time.Time   `json:"created_at"`
}

// DebateViewer tracks a single spectator presence on a debate.
// ViewerKey is ViewerIdentity.Key(), unique per debate.
type DebateViewer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DebateID   uint      `gorm:"not null;index;uniqueIndex:idx_debate_viewer_key,priority:1" json:"debate_id"`
	ViewerKey  string    `gorm:"size:80;not null;uniqueIndex:idx_debate_viewer_key,priority:2" json:"-"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	SessionID  string    `gorm:"size:64;index" json:"session_id,omitempty"`
	LastSeenAt time.Time `gorm:"not null;index" json:"last_seen_at"`
}

// ViewerIdentity names a spectator: exactly one of UserID or SessionID is set.
type ViewerIdentity struct {
	UserID    *uint
	SessionID string
}

// Valid reports whether exactly one identity component is present.
func (v ViewerIdentity) Valid() bool {
	hasUser := v.UserID != nil && *v.UserID > 0
	hasSession := v.SessionID != ""
	return hasUser != hasSession
}

// Key returns a stable string naming the viewer, prefixed by identity kind.
func (v ViewerIdentity) Key() string {
	if v.UserID != nil && *v.UserID > 0 {
		return "u:" + strconv.FormatUint(uint64(*v.UserID), 10)
	}
	return "s:" + v.SessionID
}

// Kind returns "user" or "session".
func (v ViewerIdentity) Kind() string {
	if v.UserID != nil && *v.UserID > 0 {
		return "user"
	}
	return "session"
}
