package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/repository"
	"github.com/noah-isme/debate-go-api/internal/service/mocks"
)

func waitForDelivery(t *testing.T, delivered <-chan dto.PushPayload) dto.PushPayload {
	t.Helper()
	select {
	case payload := <-delivered:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification delivery")
		return dto.PushPayload{}
	}
}

func startDispatcher(t *testing.T, dispatcher NotificationDispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)
	t.Cleanup(func() {
		cancel()
		dispatcher.Wait()
	})
}

func TestDispatcherChallengeCreated(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := setupTestDB(t)
	alice := seedUser(t, db, 1, "alice")
	bob := seedUser(t, db, 2, "bob")

	delivered := make(chan dto.PushPayload, 1)
	sink := mocks.NewMockNotificationSink(ctrl)
	sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, payload dto.PushPayload) error {
		delivered <- payload
		return nil
	})

	dispatcher := NewNotificationDispatcher(repository.NewUserRepository(db), sink, DispatcherConfig{Workers: 1}, testLogger())
	startDispatcher(t, dispatcher)

	dispatcher.ChallengeCreated(context.Background(), models.Challenge{ID: 12, ChallengerID: alice.ID, RecipientID: bob.ID, Title: "Tabs or spaces"})

	payload := waitForDelivery(t, delivered)
	require.Equal(t, bob.ID, payload.RecipientID)
	require.Equal(t, models.NotificationChallengeCreated, payload.Type)
	require.Equal(t, "New Challenge Received", payload.Title)
	require.Equal(t, `alice challenged you: "Tabs or spaces"`, payload.Body)
	require.Equal(t, "/challenges", payload.URL)
	require.Equal(t, "challenge-12", payload.Tag)
	require.Equal(t, "12", payload.Metadata["challenge_id"])
}

func TestDispatcherDebateStartedNotifiesBothSides(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := setupTestDB(t)
	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "bob")

	delivered := make(chan dto.PushPayload, 2)
	sink := mocks.NewMockNotificationSink(ctrl)
	sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(func(_ context.Context, payload dto.PushPayload) error {
		delivered <- payload
		return nil
	})

	dispatcher := NewNotificationDispatcher(repository.NewUserRepository(db), sink, DispatcherConfig{Workers: 1}, testLogger())
	startDispatcher(t, dispatcher)

	dispatcher.DebateStarted(context.Background(), models.Debate{ID: 5, Title: "Cats or dogs", Participant1ID: 1, Participant2ID: 2})

	bodies := map[uint]string{}
	for i := 0; i < 2; i++ {
		payload := waitForDelivery(t, delivered)
		require.Equal(t, "/debate/5", payload.URL)
		require.Equal(t, "debate-5", payload.Tag)
		bodies[payload.RecipientID] = payload.Body
	}
	require.Equal(t, `Your debate "Cats or dogs" with bob has started!`, bodies[1])
	require.Equal(t, `Your debate "Cats or dogs" with alice has started!`, bodies[2])
}

func TestDispatcherSkipsOptedOutAndUnknownRecipients(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := setupTestDB(t)
	alice := seedUser(t, db, 1, "alice")
	bob := seedUser(t, db, 2, "bob")
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bob.ID).Update("notify_challenge_created", false).Error)

	delivered := make(chan dto.PushPayload, 1)
	sink := mocks.NewMockNotificationSink(ctrl)
	sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(1).DoAndReturn(func(_ context.Context, payload dto.PushPayload) error {
		delivered <- payload
		return nil
	})

	dispatcher := NewNotificationDispatcher(repository.NewUserRepository(db), sink, DispatcherConfig{Workers: 1}, testLogger())
	startDispatcher(t, dispatcher)

	ctx := context.Background()
	dispatcher.ChallengeCreated(ctx, models.Challenge{ID: 1, ChallengerID: alice.ID, RecipientID: bob.ID, Title: "muted"})
	dispatcher.ChallengeCreated(ctx, models.Challenge{ID: 2, ChallengerID: alice.ID, RecipientID: 404, Title: "ghost"})
	dispatcher.ChallengeAccepted(ctx, models.Challenge{ID: 3, ChallengerID: alice.ID, RecipientID: bob.ID, Title: "accepted"}, 9)

	payload := waitForDelivery(t, delivered)
	require.Equal(t, alice.ID, payload.RecipientID)
	require.Equal(t, models.NotificationChallengeAccepted, payload.Type)
	require.Equal(t, `bob accepted your challenge: "accepted"`, payload.Body)
	require.Equal(t, "/debate/9", payload.URL)
	require.Equal(t, "9", payload.Metadata["debate_id"])
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := setupTestDB(t)
	alice := seedUser(t, db, 1, "alice")
	bob := seedUser(t, db, 2, "bob")

	delivered := make(chan dto.PushPayload, 2)
	sink := mocks.NewMockNotificationSink(ctrl)
	sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(1).DoAndReturn(func(_ context.Context, payload dto.PushPayload) error {
		delivered <- payload
		return nil
	})

	dispatcher := NewNotificationDispatcher(repository.NewUserRepository(db), sink, DispatcherConfig{Workers: 1, QueueSize: 1}, testLogger())

	ctx := context.Background()
	returned := make(chan struct{})
	go func() {
		dispatcher.ChallengeCreated(ctx, models.Challenge{ID: 1, ChallengerID: alice.ID, RecipientID: bob.ID, Title: "first"})
		dispatcher.ChallengeCreated(ctx, models.Challenge{ID: 2, ChallengerID: alice.ID, RecipientID: bob.ID, Title: "second"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	startDispatcher(t, dispatcher)
	payload := waitForDelivery(t, delivered)
	require.Equal(t, "challenge-1", payload.Tag)

	select {
	case extra := <-delivered:
		t.Fatalf("unexpected delivery %s", extra.Tag)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherSurvivesSinkFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := setupTestDB(t)
	alice := seedUser(t, db, 1, "alice")
	bob := seedUser(t, db, 2, "bob")

	delivered := make(chan dto.PushPayload, 1)
	sink := mocks.NewMockNotificationSink(ctrl)
	gomock.InOrder(
		sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("push service unavailable")),
		sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, payload dto.PushPayload) error {
			delivered <- payload
			return nil
		}),
	)

	dispatcher := NewNotificationDispatcher(repository.NewUserRepository(db), sink, DispatcherConfig{Workers: 1}, testLogger())
	startDispatcher(t, dispatcher)

	ctx := context.Background()
	dispatcher.ChallengeCreated(ctx, models.Challenge{ID: 1, ChallengerID: alice.ID, RecipientID: bob.ID, Title: "lost"})
	dispatcher.ChallengeCreated(ctx, models.Challenge{ID: 2, ChallengerID: alice.ID, RecipientID: bob.ID, Title: "kept"})

	payload := waitForDelivery(t, delivered)
	require.Equal(t, "challenge-2", payload.Tag)
}
