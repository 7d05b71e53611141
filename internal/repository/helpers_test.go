package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

var baseTime = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

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

func createDebate(t *testing.T, db *gorm.DB, debate models.Debate) models.Debate {
	t.Helper()
	if debate.Title == "" {
		debate.Title = "Tabs versus spaces"
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
		debate.ScheduledStartTime = baseTime
	}
	require.NoError(t, db.Create(&debate).Error)
	return debate
}

func livingSince(t *testing.T, db *gorm.DB, started time.Time) models.Debate {
	t.Helper()
	return createDebate(t, db, models.Debate{
		Status:          models.DebateStatusLive,
		ActualStartTime: &started,
		RoundStartTime:  &started,
	})
}
