package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// Migrate creates or updates every table the API owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Debate{},
		&models.DebateMessage{},
		&models.DebateViewer{},
		&models.SpectatorMessage{},
		&models.Notification{},
	)
}
