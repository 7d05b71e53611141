package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// ErrStaleDebate is returned when a conditional update finds the debate no longer in the expected state.
var ErrStaleDebate = errors.New("debate state changed concurrently")

// DebateSort selects the ordering used when listing live debates.
type DebateSort string

const (
	DebateSortHot    DebateSort = "hot"
	DebateSortRecent DebateSort = "recent"
)

// DebateRepository persists debates and applies state transitions atomically.
type DebateRepository interface {
	Create(ctx context.Context, debate *models.Debate) error
	GetByID(ctx context.Context, id uint) (models.Debate, error)
	ApplyTransition(ctx context.Context, expected, next models.Debate) error
	UpdateViewerCount(ctx context.Context, id uint, count int) error
	ListDueForStart(ctx context.Context, now time.Time, limit int) ([]models.Debate, error)
	ListExpiredRounds(ctx context.Context, cutoff time.Time, limit int) ([]models.Debate, error)
	ListLive(ctx context.Context, sort DebateSort, since time.Time, limit int) ([]models.Debate, error)
	ListStartedSince(ctx context.Context, since time.Time, limit int) ([]models.Debate, error)
	ListCompletedByParticipant(ctx context.Context, userID uint, limit int) ([]models.Debate, error)
	ListUpcomingByParticipant(ctx context.Context, userID uint) ([]models.Debate, error)
	FindLiveBetween(ctx context.Context, userA, userB uint) (models.Debate, error)
	CompletedChallengeIDs(ctx context.Context, challengeIDs []uint) (map[uint]struct{}, error)
	SearchByTitle(ctx context.Context, term string, limit int) ([]models.Debate, error)
}

type debateRepository struct {
	db *gorm.DB
}

// NewDebateRepository constructs a debate repository backed by GORM.
func NewDebateRepository(db *gorm.DB) DebateRepository {
	return &debateRepository{db: db}
}

func (r *debateRepository) Create(ctx context.Context, debate *models.Debate) error {
	return r.db.WithContext(ctx).Create(debate).Error
}

func (r *debateRepository) GetByID(ctx context.Context, id uint) (models.Debate, error) {
	var debate models.Debate
	if err := r.db.WithContext(ctx).First(&debate, id).Error; err != nil {
		return models.Debate{}, err
	}
	return debate, nil
}

func (r *debateRepository) ApplyTransition(ctx context.Context, expected, next models.Debate) error {
	return applyTransition(r.db.WithContext(ctx), expected, next)
}

// applyTransition writes next only if the row still matches the status, round and turn of expected.
// Within a debate the (round, turn) pair only ever moves forward, so matching it rules out
// applying two transitions computed from the same snapshot.
func applyTransition(tx *gorm.DB, expected, next models.Debate) error {
	result := tx.Model(&models.Debate{}).
		Where("id = ?", expected.ID).
		Where("status = ?", expected.Status).
		Where("current_turn = ?", expected.CurrentTurn).
		Where("current_round = ?", expected.CurrentRound).
		Updates(map[string]interface{}{
			"status":            next.Status,
			"current_turn":      next.CurrentTurn,
			"current_round":     next.CurrentRound,
			"round_start_time":  next.RoundStartTime,
			"actual_start_time": next.ActualStartTime,
			"actual_end_time":   next.ActualEndTime,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleDebate
	}
	return nil
}

func (r *debateRepository) UpdateViewerCount(ctx context.Context, id uint, count int) error {
	result := r.db.WithContext(ctx).Model(&models.Debate{}).
		Where("id = ?", id).
		UpdateColumn("viewer_count", count)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *debateRepository) ListDueForStart(ctx context.Context, now time.Time, limit int) ([]models.Debate, error) {
	var debates []models.Debate
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_start_time <= ?", models.DebateStatusScheduled, now).
		Order("scheduled_start_time ASC").
		Limit(normaliseLimit(limit, 500)).
		Find(&debates).Error
	return debates, err
}

func (r *debateRepository) ListExpiredRounds(ctx context.Context, cutoff time.Time, limit int) ([]models.Debate, error) {
	var debates []models.Debate
	err := r.db.WithContext(ctx).
		Where("status = ? AND round_start_time IS NOT NULL AND round_start_time <= ?", models.DebateStatusLive, cutoff).
		Order("round_start_time ASC").
		Limit(normaliseLimit(limit, 500)).
		Find(&debates).Error
	return debates, err
}

// ListLive returns live debates. A non-zero since keeps only debates started at or after it.
func (r *debateRepository) ListLive(ctx context.Context, order DebateSort, since time.Time, limit int) ([]models.Debate, error) {
	query := r.db.WithContext(ctx).Where("status = ?", models.DebateStatusLive)
	if !since.IsZero() {
		query = query.Where("actual_start_time >= ?", since)
	}
	switch order {
	case DebateSortRecent:
		query = query.Order("actual_start_time DESC").Order("id DESC")
	default:
		query = query.Order("viewer_count DESC").Order("actual_start_time DESC")
	}

	var debates []models.Debate
	err := query.Limit(normaliseLimit(limit, 100)).Find(&debates).Error
	return debates, err
}

func (r *debateRepository) ListStartedSince(ctx context.Context, since time.Time, limit int) ([]models.Debate, error) {
	var debates []models.Debate
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.DebateStatus{models.DebateStatusLive, models.DebateStatusCompleted}).
		Where("actual_start_time >= ?", since).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN status = ? THEN 0 ELSE 1 END, actual_start_time DESC, id DESC",
			Vars:               []interface{}{models.DebateStatusLive},
			WithoutParentheses: true,
		}}).
		Limit(normaliseLimit(limit, 100)).
		Find(&debates).Error
	if err != nil {
		return nil, err
	}
	return debates, nil
}

func (r *debateRepository) ListCompletedByParticipant(ctx context.Context, userID uint, limit int) ([]models.Debate, error) {
	var debates []models.Debate
	err := r.db.WithContext(ctx).
		Where("status = ?", models.DebateStatusCompleted).
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("actual_end_time DESC").
		Limit(normaliseLimit(limit, 100)).
		Find(&debates).Error
	return debates, err
}

func (r *debateRepository) ListUpcomingByParticipant(ctx context.Context, userID uint) ([]models.Debate, error) {
	var debates []models.Debate
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.DebateStatus{models.DebateStatusScheduled, models.DebateStatusLive}).
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("scheduled_start_time ASC").
		Find(&debates).Error
	return debates, err
}

func (r *debateRepository) FindLiveBetween(ctx context.Context, userA, userB uint) (models.Debate, error) {
	var debate models.Debate
	err := r.db.WithContext(ctx).
		Where("status = ?", models.DebateStatusLive).
		Where("(participant1_id = ? AND participant2_id = ?) OR (participant1_id = ? AND participant2_id = ?)", userA, userB, userB, userA).
		Order("actual_start_time DESC").
		First(&debate).Error
	if err != nil {
		return models.Debate{}, err
	}
	return debate, nil
}

func (r *debateRepository) CompletedChallengeIDs(ctx context.Context, challengeIDs []uint) (map[uint]struct{}, error) {
	out := make(map[uint]struct{})
	if len(challengeIDs) == 0 {
		return out, nil
	}

	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Debate{}).
		Where("challenge_id IN ? AND status = ?", challengeIDs, models.DebateStatusCompleted).
		Pluck("challenge_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// SearchByTitle matches the term anywhere in the title, case-insensitively.
func (r *debateRepository) SearchByTitle(ctx context.Context, term string, limit int) ([]models.Debate, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	var debates []models.Debate
	err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE ? ESCAPE '\\'", pattern).
		Order("created_at DESC").
		Limit(normaliseLimit(limit, 20)).
		Find(&debates).Error
	return debates, err
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

func normaliseLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
