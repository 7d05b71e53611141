package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

type debateFixture struct {
	db        *gorm.DB
	clock     *testClock
	events    *recordingPublisher
	notifier  *recordingStartNotifier
	debates   repository.DebateRepository
	messages  repository.DebateMessageRepository
	service   DebateService
	alice     models.User
	bob       models.User
	spectator models.User
}

func newDebateFixture(t *testing.T) *debateFixture {
	t.Helper()
	db := setupTestDB(t)

	f := &debateFixture{
		db:       db,
		clock:    newTestClock(),
		events:   &recordingPublisher{},
		notifier: &recordingStartNotifier{},
		debates:  repository.NewDebateRepository(db),
		messages: repository.NewDebateMessageRepository(db),
	}
	f.alice = seedUser(t, db, 1, "alice")
	f.bob = seedUser(t, db, 2, "bob")
	f.spectator = seedUser(t, db, 3, "carol")
	f.service = f.newService(f.debates)
	return f
}

func (f *debateFixture) newService(debates repository.DebateRepository) DebateService {
	svc := NewDebateService(debates, f.messages, repository.NewUserRepository(f.db), f.notifier, f.events, testValidator(), testLogger())
	svc.(*debateService).now = f.clock.Now
	return svc
}

func (f *debateFixture) submit(t *testing.T, debateID, authorID uint, round models.DebateRound, content string) dto.SubmitMessageResponse {
	t.Helper()
	result, err := f.service.SubmitMessage(context.Background(), debateID, authorID, dto.DebateMessageRequest{Round: round, Content: content})
	require.NoError(t, err)
	return result
}

func TestDebateServiceFullDebate(t *testing.T) {
	f := newDebateFixture(t)
	ctx := context.Background()
	debate := seedDebate(t, f.db, models.Debate{ScheduledStartTime: f.clock.Now()})

	started, err := f.service.Start(ctx, debate.ID, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, models.DebateStatusLive, started.Status)
	require.Equal(t, 60, started.RemainingSeconds)
	require.Len(t, f.notifier.started, 1)

	for i, round := range models.RoundOrder {
		f.clock.Advance(10 * time.Second)
		first := f.submit(t, debate.ID, f.alice.ID, round, fmt.Sprintf("alice %d", i))
		require.Equal(t, 0, first.Message.Order)
		require.Equal(t, models.TurnParticipant2, first.Debate.CurrentTurn)

		f.clock.Advance(10 * time.Second)
		second := f.submit(t, debate.ID, f.bob.ID, round, fmt.Sprintf("bob %d", i))
		require.Equal(t, 1, second.Message.Order)
	}

	final := reloadDebate(t, f.db, debate.ID)
	require.Equal(t, models.DebateStatusCompleted, final.Status)
	require.NotNil(t, final.ActualEndTime)
	require.True(t, final.ActualEndTime.Equal(f.clock.Now()))

	_, err = f.service.SubmitMessage(ctx, debate.ID, f.alice.ID, dto.DebateMessageRequest{Round: models.RoundClosingRemarks, Content: "one more"})
	require.ErrorIs(t, err, ErrDebateNotLive)

	messages, err := f.service.Messages(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, messages, 10)
	for i, message := range messages {
		require.Equal(t, models.RoundOrder[i/2], message.Round)
		require.Equal(t, i%2, message.Order)
	}
	require.Equal(t, "alice 0", messages[0].Content)
	require.Equal(t, "bob 4", messages[9].Content)
	require.Equal(t, f.alice.Username, messages[0].AuthorUsername)
	require.Equal(t, f.bob.Username, messages[9].AuthorUsername)

	require.Equal(t, dto.LiveEventDebateStarted, f.events.types()[0])
	require.Equal(t, dto.LiveEventDebateCompleted, f.events.types()[len(f.events.events)-1])
}

func TestDebateServiceSubmitRejectsOutOfTurn(t *testing.T) {
	f := newDebateFixture(t)
	ctx := context.Background()
	debate := liveDebate(t, f.db, f.clock.Now())

	_, err := f.service.SubmitMessage(ctx, debate.ID, f.bob.ID, dto.DebateMessageRequest{Round: models.RoundOpeningRemarks, Content: "me first"})
	require.ErrorIs(t, err, ErrTurnViolation)

	_, err = f.service.SubmitMessage(ctx, debate.ID, f.spectator.ID, dto.DebateMessageRequest{Round: models.RoundOpeningRemarks, Content: "heckle"})
	require.ErrorIs(t, err, ErrTurnViolation)

	_, err = f.service.SubmitMessage(ctx, debate.ID, f.alice.ID, dto.DebateMessageRequest{Round: models.RoundPoint1, Content: "skipping ahead"})
	require.ErrorIs(t, err, ErrRoundMismatch)

	_, err = f.service.SubmitMessage(ctx, debate.ID, f.alice.ID, dto.DebateMessageRequest{Round: models.RoundOpeningRemarks, Content: "<script></script>"})
	require.ErrorIs(t, err, ErrEmptyContent)

	after := reloadDebate(t, f.db, debate.ID)
	require.Equal(t, models.TurnParticipant1, after.CurrentTurn)
	require.Equal(t, models.RoundOpeningRemarks, after.CurrentRound)
	require.True(t, after.RoundStartTime.Equal(*debate.RoundStartTime))

	count := countRoundMessages(t, f.db, debate.ID, models.RoundOpeningRemarks)
	require.Zero(t, count)
	require.Empty(t, f.events.events)
}

func TestDebateServiceSubmitSanitizesContent(t *testing.T) {
	f := newDebateFixture(t)
	debate := liveDebate(t, f.db, f.clock.Now())

	result := f.submit(t, debate.ID, f.alice.ID, models.RoundOpeningRemarks, "  <b>Hello</b> world  ")
	require.Equal(t, "Hello world", result.Message.Content)
	require.Equal(t, f.alice.ID, result.Message.AuthorID)
}

func TestDebateServiceSubmitScheduledDebate(t *testing.T) {
	f := newDebateFixture(t)
	debate := seedDebate(t, f.db, models.Debate{})

	_, err := f.service.SubmitMessage(context.Background(), debate.ID, f.alice.ID, dto.DebateMessageRequest{Round: models.RoundOpeningRemarks, Content: "too early"})
	require.ErrorIs(t, err, ErrDebateNotLive)

	_, err = f.service.SubmitMessage(context.Background(), 9999, f.alice.ID, dto.DebateMessageRequest{Round: models.RoundOpeningRemarks, Content: "nowhere"})
	require.ErrorIs(t, err, ErrDebateNotFound)
}

type staleDebateRepository struct {
	repository.DebateRepository
	snapshot models.Debate
}

func (r *staleDebateRepository) GetByID(context.Context, uint) (models.Debate, error) {
	return r.snapshot, nil
}

func TestDebateServiceSubmitLosesRace(t *testing.T) {
	f := newDebateFixture(t)
	ctx := context.Background()
	debate := liveDebate(t, f.db, f.clock.Now())

	f.submit(t, debate.ID, f.alice.ID, models.RoundOpeningRemarks, "winner")

	stale := f.newService(&staleDebateRepository{DebateRepository: f.debates, snapshot: debate})
	_, err := stale.SubmitMessage(ctx, debate.ID, f.alice.ID, dto.DebateMessageRequest{Round: models.RoundOpeningRemarks, Content: "duplicate"})
	require.ErrorIs(t, err, ErrRoundMismatch)

	count := countRoundMessages(t, f.db, debate.ID, models.RoundOpeningRemarks)
	require.EqualValues(t, 1, count)

	after := reloadDebate(t, f.db, debate.ID)
	require.Equal(t, models.TurnParticipant2, after.CurrentTurn)
}

func TestDebateServiceForceAdvanceOnTimeout(t *testing.T) {
	f := newDebateFixture(t)
	ctx := context.Background()
	started := f.clock.Now()
	debate := seedDebate(t, f.db, models.Debate{
		Status:          models.DebateStatusLive,
		CurrentRound:    models.RoundPoint2,
		CurrentTurn:     models.TurnParticipant1,
		ActualStartTime: &started,
		RoundStartTime:  &started,
	})

	f.clock.Advance(30 * time.Second)
	_, err := f.service.ForceAdvanceOnTimeout(ctx, debate.ID)
	require.ErrorIs(t, err, ErrRoundNotExpired)

	f.clock.Advance(31 * time.Second)
	advanced, err := f.service.ForceAdvanceOnTimeout(ctx, debate.ID)
	require.NoError(t, err)
	require.Equal(t, models.TurnParticipant2, advanced.CurrentTurn)
	require.Equal(t, models.RoundPoint2, advanced.CurrentRound)
	require.Equal(t, 60, advanced.RemainingSeconds)

	stored := reloadDebate(t, f.db, debate.ID)
	require.True(t, stored.RoundStartTime.Equal(f.clock.Now()))

	count := countRoundMessages(t, f.db, debate.ID, models.RoundPoint2)
	require.Zero(t, count)

	_, err = f.service.ForceAdvanceOnTimeout(ctx, debate.ID)
	require.ErrorIs(t, err, ErrRoundNotExpired)
}

func TestDebateServiceForceAdvanceCompletesFinalTurn(t *testing.T) {
	f := newDebateFixture(t)
	started := f.clock.Now()
	debate := seedDebate(t, f.db, models.Debate{
		Status:          models.DebateStatusLive,
		CurrentRound:    models.RoundClosingRemarks,
		CurrentTurn:     models.TurnParticipant2,
		ActualStartTime: &started,
		RoundStartTime:  &started,
	})

	f.clock.Advance(RoundDuration)
	result, err := f.service.ForceAdvanceOnTimeout(context.Background(), debate.ID)
	require.NoError(t, err)
	require.Equal(t, models.DebateStatusCompleted, result.Status)
	require.Zero(t, result.RemainingSeconds)

	_, err = f.service.ForceAdvanceOnTimeout(context.Background(), debate.ID)
	require.ErrorIs(t, err, ErrDebateNotLive)
}

func TestDebateServiceStart(t *testing.T) {
	f := newDebateFixture(t)
	ctx := context.Background()
	debate := seedDebate(t, f.db, models.Debate{})

	_, err := f.service.Start(ctx, debate.ID, f.spectator.ID)
	require.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.service.Start(ctx, debate.ID, 0)
	require.NoError(t, err)

	_, err = f.service.Start(ctx, debate.ID, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Len(t, f.notifier.started, 1)

	_, err = f.service.Start(ctx, 4242, 0)
	require.ErrorIs(t, err, ErrDebateNotFound)
}

func TestDebateServiceQueries(t *testing.T) {
	f := newDebateFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	earlier := now.Add(-time.Hour)
	quiet := seedDebate(t, f.db, models.Debate{Title: "Tabs versus spaces", Status: models.DebateStatusLive, ActualStartTime: &earlier, RoundStartTime: &now})
	popular := seedDebate(t, f.db, models.Debate{Title: "Is a hotdog a sandwich", Status: models.DebateStatusLive, ActualStartTime: &earlier, RoundStartTime: &now, ViewerCount: 42})
	ended := now.Add(-10 * time.Minute)
	done := seedDebate(t, f.db, models.Debate{Title: "Cats or dogs", Status: models.DebateStatusCompleted, ActualStartTime: &earlier, ActualEndTime: &ended})
	future := seedDebate(t, f.db, models.Debate{Title: "Pizza toppings", Participant1ID: f.bob.ID, Participant2ID: f.spectator.ID, ScheduledStartTime: now.Add(time.Hour)})

	hot, err := f.service.ListActive(ctx, repository.DebateSortHot)
	require.NoError(t, err)
	require.Len(t, hot, 2)
	require.Equal(t, popular.ID, hot[0].ID)
	require.Equal(t, quiet.ID, hot[1].ID)

	recent, err := f.service.ListRecent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, models.DebateStatusCompleted, recent[2].Status)

	history, err := f.service.ListByParticipant(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, done.ID, history[0].ID)

	upcoming, err := f.service.ListUpcoming(ctx, f.spectator.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	require.Equal(t, future.ID, upcoming[0].ID)

	found, err := f.service.Search(ctx, "HOTDOG")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, popular.ID, found[0].ID)

	none, err := f.service.Search(ctx, "   ")
	require.NoError(t, err)
	require.Empty(t, none)

	bySlug, err := f.service.GetBySlug(ctx, "BOB", "alice")
	require.NoError(t, err)
	require.Equal(t, models.DebateStatusLive, bySlug.Status)

	_, err = f.service.GetBySlug(ctx, "alice", "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.service.GetBySlug(ctx, "bob", "carol")
	require.ErrorIs(t, err, ErrDebateNotFound)
}

func TestDebateServiceListLiveWindow(t *testing.T) {
	f := newDebateFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	lastWeek := now.Add(-7 * 24 * time.Hour)
	hourAgo := now.Add(-time.Hour)
	minuteAgo := now.Add(-time.Minute)
	seedDebate(t, f.db, models.Debate{Title: "Forgotten marathon", Status: models.DebateStatusLive, ActualStartTime: &lastWeek, RoundStartTime: &lastWeek})
	older := seedDebate(t, f.db, models.Debate{Title: "Tabs versus spaces", Status: models.DebateStatusLive, ActualStartTime: &hourAgo, RoundStartTime: &hourAgo})
	newer := seedDebate(t, f.db, models.Debate{Title: "Cats or dogs", Status: models.DebateStatusLive, ActualStartTime: &minuteAgo, RoundStartTime: &minuteAgo})

	live, err := f.service.ListLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2)
	require.Equal(t, newer.ID, live[0].ID)
	require.Equal(t, older.ID, live[1].ID)

	active, err := f.service.ListActive(ctx, repository.DebateSortRecent)
	require.NoError(t, err)
	require.Len(t, active, 3)
}
