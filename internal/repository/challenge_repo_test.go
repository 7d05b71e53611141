package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/debate-go-api/internal/models"
)

func TestChallengeAcceptOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()

	challenge := models.Challenge{ChallengerID: 1, RecipientID: 2, Title: "Cats or dogs", ScheduledTime: baseTime, Status: models.ChallengeStatusPending}
	require.NoError(t, repo.Create(ctx, &challenge))

	debate := models.Debate{Title: challenge.Title, Participant1ID: 1, Participant2ID: 2, Status: models.DebateStatusScheduled, ScheduledStartTime: baseTime, CurrentTurn: models.TurnParticipant1, CurrentRound: models.RoundOpeningRemarks}
	require.NoError(t, repo.Accept(ctx, &challenge, &debate, baseTime))
	require.Equal(t, models.ChallengeStatusAccepted, challenge.Status)
	require.NotZero(t, debate.ID)
	require.Equal(t, challenge.ID, *debate.ChallengeID)

	stale, err := repo.GetByID(ctx, challenge.ID)
	require.NoError(t, err)
	stale.Status = models.ChallengeStatusPending

	duplicate := debate
	duplicate.ID = 0
	require.ErrorIs(t, repo.Accept(ctx, &stale, &duplicate, baseTime), ErrChallengeNotPending)
	require.ErrorIs(t, repo.Decline(ctx, &stale, baseTime), ErrChallengeNotPending)

	var debates int64
	require.NoError(t, db.Model(&models.Debate{}).Count(&debates).Error)
	require.EqualValues(t, 1, debates)
}

func TestChallengeListings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()

	open := models.Challenge{ChallengerID: 1, RecipientID: 2, Title: "Open", ScheduledTime: baseTime, Status: models.ChallengeStatusPending}
	answered := models.Challenge{ChallengerID: 1, RecipientID: 2, Title: "Answered", ScheduledTime: baseTime, Status: models.ChallengeStatusPending}
	require.NoError(t, repo.Create(ctx, &open))
	require.NoError(t, repo.Create(ctx, &answered))
	require.NoError(t, repo.Decline(ctx, &answered, baseTime))

	incoming, err := repo.ListIncoming(ctx, 2)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, open.ID, incoming[0].ID)

	outgoing, err := repo.ListOutgoing(ctx, 1)
	require.NoError(t, err)
	require.Len(t, outgoing, 2)
}
