package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// ViewerRepository stores spectator presence records per debate.
type ViewerRepository interface {
	Touch(ctx context.Context, debateID uint, identity models.ViewerIdentity, seenAt time.Time) error
	Remove(ctx context.Context, debateID uint, identity models.ViewerIdentity) error
	EvictBefore(ctx context.Context, debateID uint, cutoff time.Time) (int64, error)
	Count(ctx context.Context, debateID uint) (int64, error)
}

type viewerRepository struct {
	db *gorm.DB
}

// NewViewerRepository constructs a presence store backed by the debate_viewers table.
func NewViewerRepository(db *gorm.DB) ViewerRepository {
	return &viewerRepository{db: db}
}

// Touch inserts the viewer or refreshes last_seen_at in a single upsert on (debate_id, viewer_key).
func (r *viewerRepository) Touch(ctx context.Context, debateID uint, identity models.ViewerIdentity, seenAt time.Time) error {
	viewer := models.DebateViewer{
		DebateID:   debateID,
		ViewerKey:  identity.Key(),
		LastSeenAt: seenAt,
	}
	if identity.Kind() == "user" {
		userID := *identity.UserID
		viewer.UserID = &userID
	} else {
		viewer.SessionID = identity.SessionID
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "debate_id"}, {Name: "viewer_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at"}),
		}).
		Create(&viewer).Error
}

func (r *viewerRepository) Remove(ctx context.Context, debateID uint, identity models.ViewerIdentity) error {
	return viewerScope(r.db.WithContext(ctx), debateID, identity).Delete(&models.DebateViewer{}).Error
}

func (r *viewerRepository) EvictBefore(ctx context.Context, debateID uint, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("debate_id = ? AND last_seen_at < ?", debateID, cutoff).
		Delete(&models.DebateViewer{})
	return result.RowsAffected, result.Error
}

func (r *viewerRepository) Count(ctx context.Context, debateID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DebateViewer{}).
		Where("debate_id = ?", debateID).
		Count(&count).Error
	return count, err
}

func viewerScope(tx *gorm.DB, debateID uint, identity models.ViewerIdentity) *gorm.DB {
	return tx.Where("debate_id = ? AND viewer_key = ?", debateID, identity.Key())
}
