package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Debate{},
		&models.DebateMessage{},
		&models.DebateViewer{},
		&models.SpectatorMessage{},
		&models.Notification{},
	))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func seedUser(t *testing.T, db *gorm.DB, id uint, username string) models.User {
	t.Helper()
	user := models.User{
		ID:                      id,
		ExternalID:              fmt.Sprintf("ext-%d", id),
		Username:                username,
		NotifyChallengeCreated:  true,
		NotifyChallengeAccepted: true,
		NotifyDebateStarting:    true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedDebate(t *testing.T, db *gorm.DB, debate models.Debate) models.Debate {
	t.Helper()
	if debate.Title == "" {
		debate.Title = "Pineapple belongs on pizza"
	}
	if debate.Participant1ID == 0 {
		debate.Participant1ID = 1
	}
	if debate.Participant2ID == 0 {
		debate.Participant2ID = 2
	}
	if debate.Status == "" {
		debate.Status = models.DebateStatusScheduled
	}
	if debate.CurrentTurn == "" {
		debate.CurrentTurn = models.TurnParticipant1
	}
	if debate.CurrentRound == "" {
		debate.CurrentRound = models.RoundOpeningRemarks
	}
	if debate.ScheduledStartTime.IsZero() {
		debate.ScheduledStartTime = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	}
	require.NoError(t, db.Create(&debate).Error)
	return debate
}

func liveDebate(t *testing.T, db *gorm.DB, startedAt time.Time) models.Debate {
	t.Helper()
	return seedDebate(t, db, models.Debate{
		Status:          models.DebateStatusLive,
		ActualStartTime: &startedAt,
		RoundStartTime:  &startedAt,
	})
}

func reloadDebate(t *testing.T, db *gorm.DB, id uint) models.Debate {
	t.Helper()
	var debate models.Debate
	require.NoError(t, db.First(&debate, id).Error)
	return debate
}

type recordingPublisher struct {
	events []dto.LiveEvent
}

func (r *recordingPublisher) PublishDebateEvent(_ context.Context, event dto.LiveEvent) {
	r.events = append(r.events, event)
}

func (r *recordingPublisher) types() []string {
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

type recordingStartNotifier struct {
	started []models.Debate
}

func (r *recordingStartNotifier) DebateStarted(_ context.Context, debate models.Debate) {
	r.started = append(r.started, debate)
}

func countRoundMessages(t *testing.T, db *gorm.DB, debateID uint, round models.DebateRound) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.DebateMessage{}).
		Where("debate_id = ? AND round = ?", debateID, round).
		Count(&count).Error)
	return count
}
