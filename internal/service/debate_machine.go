package service

import (
	"errors"
	"time"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
)

// Debate timing constants.
const (
	RoundDuration     = dto.RoundDuration
	ViewerStaleAfter  = 2 * time.Minute
	HeartbeatInterval = 30 * time.Second
)

var (
	// ErrDebateNotLive indicates the debate is not accepting messages or advances.
	ErrDebateNotLive = errors.New("debate is not live")
	// ErrInvalidRound indicates the debate carries a round outside the fixed order.
	ErrInvalidRound = errors.New("invalid debate round")
)

// AdvanceDebate computes the state after the side on turn has spoken or timed out.
// The turn always flips. When it wraps back to participant1 the round moves forward,
// and wrapping after the final round completes the debate instead.
func AdvanceDebate(debate models.Debate, now time.Time) (models.Debate, error) {
	if !debate.IsLive() {
		return debate, ErrDebateNotLive
	}
	if !debate.CurrentRound.Valid() {
		return debate, ErrInvalidRound
	}

	next := debate
	nextTurn := debate.CurrentTurn.Other()
	if nextTurn != models.TurnParticipant1 {
		next.CurrentTurn = nextTurn
		next.RoundStartTime = timePtr(now)
		return next, nil
	}

	round, ok := debate.CurrentRound.Next()
	if !ok {
		next.Status = models.DebateStatusCompleted
		next.ActualEndTime = timePtr(now)
		return next, nil
	}

	next.CurrentRound = round
	next.CurrentTurn = models.TurnParticipant1
	next.RoundStartTime = timePtr(now)
	return next, nil
}

// StartDebate computes the state of a scheduled debate going live.
func StartDebate(debate models.Debate, now time.Time) (models.Debate, error) {
	if debate.Status != models.DebateStatusScheduled {
		return debate, ErrInvalidTransition
	}

	next := debate
	next.Status = models.DebateStatusLive
	next.ActualStartTime = timePtr(now)
	next.RoundStartTime = timePtr(now)
	if !next.CurrentTurn.Valid() {
		next.CurrentTurn = models.TurnParticipant1
	}
	if !next.CurrentRound.Valid() {
		next.CurrentRound = models.RoundOpeningRemarks
	}
	return next, nil
}

// RoundExpired reports whether the side on turn has used up its time.
func RoundExpired(debate models.Debate, now time.Time) bool {
	if debate.RoundStartTime == nil {
		return false
	}
	return !now.Before(debate.RoundStartTime.Add(RoundDuration))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
