package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

func TestApplyTransitionIsConditional(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()
	debate := livingSince(t, db, baseTime)

	next := debate
	next.CurrentTurn = models.TurnParticipant2
	later := baseTime.Add(20 * time.Second)
	next.RoundStartTime = &later

	require.NoError(t, repo.ApplyTransition(ctx, debate, next))
	require.ErrorIs(t, repo.ApplyTransition(ctx, debate, next), ErrStaleDebate)

	stored, err := repo.GetByID(ctx, debate.ID)
	require.NoError(t, err)
	require.Equal(t, models.TurnParticipant2, stored.CurrentTurn)
	require.True(t, stored.RoundStartTime.Equal(later))

	missing := debate
	missing.ID = 999
	require.ErrorIs(t, repo.ApplyTransition(ctx, missing, next), ErrStaleDebate)
}

func TestListDueAndExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	due := createDebate(t, db, models.Debate{ScheduledStartTime: baseTime.Add(-time.Minute)})
	exact := createDebate(t, db, models.Debate{ScheduledStartTime: baseTime})
	createDebate(t, db, models.Debate{ScheduledStartTime: baseTime.Add(time.Minute)})

	stalled := livingSince(t, db, baseTime.Add(-2*time.Minute))
	livingSince(t, db, baseTime.Add(-30*time.Second))
	ended := baseTime.Add(-time.Hour)
	createDebate(t, db, models.Debate{Status: models.DebateStatusCompleted, RoundStartTime: &ended})

	dueList, err := repo.ListDueForStart(ctx, baseTime, 0)
	require.NoError(t, err)
	require.Len(t, dueList, 2)
	require.Equal(t, due.ID, dueList[0].ID)
	require.Equal(t, exact.ID, dueList[1].ID)

	expired, err := repo.ListExpiredRounds(ctx, baseTime.Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, stalled.ID, expired[0].ID)
}

func TestListLiveOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	older := livingSince(t, db, baseTime.Add(-time.Hour))
	newer := livingSince(t, db, baseTime)
	require.NoError(t, repo.UpdateViewerCount(ctx, older.ID, 12))
	require.ErrorIs(t, repo.UpdateViewerCount(ctx, 999, 1), gorm.ErrRecordNotFound)

	hot, err := repo.ListLive(ctx, DebateSortHot, time.Time{}, 0)
	require.NoError(t, err)
	require.Equal(t, []uint{older.ID, newer.ID}, []uint{hot[0].ID, hot[1].ID})

	recent, err := repo.ListLive(ctx, DebateSortRecent, time.Time{}, 0)
	require.NoError(t, err)
	require.Equal(t, []uint{newer.ID, older.ID}, []uint{recent[0].ID, recent[1].ID})

	windowed, err := repo.ListLive(ctx, DebateSortRecent, baseTime.Add(-30*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, newer.ID, windowed[0].ID)
}

func TestFindLiveBetweenEitherOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()
	debate := livingSince(t, db, baseTime)

	found, err := repo.FindLiveBetween(ctx, 2, 1)
	require.NoError(t, err)
	require.Equal(t, debate.ID, found.ID)

	_, err = repo.FindLiveBetween(ctx, 1, 3)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCompletedChallengeIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	finishedID, pendingID := uint(10), uint(11)
	createDebate(t, db, models.Debate{Status: models.DebateStatusCompleted, ChallengeID: &finishedID})
	createDebate(t, db, models.Debate{ChallengeID: &pendingID})

	done, err := repo.CompletedChallengeIDs(ctx, []uint{finishedID, pendingID, 12})
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.Contains(t, done, finishedID)

	empty, err := repo.CompletedChallengeIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSearchByTitle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	createDebate(t, db, models.Debate{Title: "Is 100% effort overrated?"})
	createDebate(t, db, models.Debate{Title: "Snake_case beats camelCase"})
	createDebate(t, db, models.Debate{Title: "Remote work is better"})

	percent, err := repo.SearchByTitle(ctx, "100%", 0)
	require.NoError(t, err)
	require.Len(t, percent, 1)

	underscore, err := repo.SearchByTitle(ctx, "SNAKE_", 0)
	require.NoError(t, err)
	require.Len(t, underscore, 1)
	require.Equal(t, "Snake_case beats camelCase", underscore[0].Title)

	wildcard, err := repo.SearchByTitle(ctx, "_", 0)
	require.NoError(t, err)
	require.Len(t, wildcard, 1)

	many, err := repo.SearchByTitle(ctx, "e", 2)
	require.NoError(t, err)
	require.Len(t, many, 2)
}

func TestListStartedSinceLiveFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	recentStart := baseTime.Add(-time.Minute)
	finished := createDebate(t, db, models.Debate{Status: models.DebateStatusCompleted, ActualStartTime: &recentStart})
	live := livingSince(t, db, baseTime.Add(-time.Hour))
	stale := baseTime.Add(-48 * time.Hour)
	createDebate(t, db, models.Debate{Status: models.DebateStatusCompleted, ActualStartTime: &stale})

	debates, err := repo.ListStartedSince(ctx, baseTime.Add(-24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, debates, 2)
	require.Equal(t, live.ID, debates[0].ID)
	require.Equal(t, finished.ID, debates[1].ID)
}

func TestListStartedSinceKeepsLiveDebatesPastTheLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	live := livingSince(t, db, baseTime.Add(-2*time.Hour))
	for i := 0; i < 100; i++ {
		started := baseTime.Add(-time.Duration(i) * time.Minute)
		createDebate(t, db, models.Debate{Status: models.DebateStatusCompleted, ActualStartTime: &started})
	}

	debates, err := repo.ListStartedSince(ctx, baseTime.Add(-24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, debates, 100)
	require.Equal(t, live.ID, debates[0].ID)
	require.Equal(t, models.DebateStatusCompleted, debates[1].Status)
	require.True(t, debates[1].ActualStartTime.Equal(baseTime))
	require.True(t, debates[99].ActualStartTime.Equal(baseTime.Add(-98*time.Minute)))
}
