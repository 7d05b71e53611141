package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/observability"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

// ErrInvalidViewerIdentity indicates the viewer supplied neither or both of user id and session token.
var ErrInvalidViewerIdentity = errors.New("viewer identity must be exactly one of user id or session id")

// PresenceService tracks how many spectators are watching each debate.
type PresenceService interface {
	Heartbeat(ctx context.Context, debateID uint, identity models.ViewerIdentity) (dto.PresenceResponse, error)
	Depart(ctx context.Context, debateID uint, identity models.ViewerIdentity) (dto.PresenceResponse, error)
	Refresh(ctx context.Context, debateID uint) (int, error)
}

type presenceService struct {
	debates repository.DebateRepository
	viewers repository.ViewerRepository
	events  DebateEventPublisher
	logger  zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewPresenceService constructs a presence tracker over the given viewer store. events may be nil.
func NewPresenceService(debates repository.DebateRepository, viewers repository.ViewerRepository, events DebateEventPublisher, logger zerolog.Logger) PresenceService {
	return &presenceService{
		debates: debates,
		viewers: viewers,
		events:  events,
		logger:  logger.With().Str("component", "presence_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/debate-go-api/internal/service/presence"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *presenceService) Heartbeat(ctx context.Context, debateID uint, identity models.ViewerIdentity) (dto.PresenceResponse, error) {
	if !identity.Valid() {
		return dto.PresenceResponse{}, ErrInvalidViewerIdentity
	}

	ctx, span := s.tracer.Start(ctx, "presence.heartbeat", trace.WithAttributes(
		attribute.Int64("debate.id", int64(debateID)),
		attribute.String("viewer.kind", identity.Kind()),
	))
	defer span.End()

	debate, err := s.loadDebate(ctx, debateID)
	if err != nil {
		return dto.PresenceResponse{}, err
	}

	now := s.now()
	if _, err := s.viewers.EvictBefore(ctx, debateID, now.Add(-ViewerStaleAfter)); err != nil {
		span.RecordError(err)
		return dto.PresenceResponse{}, fmt.Errorf("evict stale viewers of debate %d: %w", debateID, err)
	}
	if err := s.viewers.Touch(ctx, debateID, identity, now); err != nil {
		span.RecordError(err)
		return dto.PresenceResponse{}, fmt.Errorf("record viewer of debate %d: %w", debateID, err)
	}

	count, err := s.recount(ctx, debate)
	if err != nil {
		return dto.PresenceResponse{}, err
	}

	observability.PresenceHeartbeats().WithLabelValues(identity.Kind()).Inc()
	return s.response(debateID, count, identity), nil
}

func (s *presenceService) Depart(ctx context.Context, debateID uint, identity models.ViewerIdentity) (dto.PresenceResponse, error) {
	if !identity.Valid() {
		return dto.PresenceResponse{}, ErrInvalidViewerIdentity
	}

	debate, err := s.loadDebate(ctx, debateID)
	if err != nil {
		return dto.PresenceResponse{}, err
	}

	if err := s.viewers.Remove(ctx, debateID, identity); err != nil {
		return dto.PresenceResponse{}, fmt.Errorf("remove viewer of debate %d: %w", debateID, err)
	}

	count, err := s.recount(ctx, debate)
	if err != nil {
		return dto.PresenceResponse{}, err
	}
	return s.response(debateID, count, identity), nil
}

// Refresh evicts stale viewers and recomputes the count without touching any live record.
func (s *presenceService) Refresh(ctx context.Context, debateID uint) (int, error) {
	debate, err := s.loadDebate(ctx, debateID)
	if err != nil {
		return 0, err
	}

	if _, err := s.viewers.EvictBefore(ctx, debateID, s.now().Add(-ViewerStaleAfter)); err != nil {
		return 0, fmt.Errorf("evict stale viewers of debate %d: %w", debateID, err)
	}

	return s.recount(ctx, debate)
}

func (s *presenceService) recount(ctx context.Context, debate models.Debate) (int, error) {
	total, err := s.viewers.Count(ctx, debate.ID)
	if err != nil {
		return 0, fmt.Errorf("count viewers of debate %d: %w", debate.ID, err)
	}

	count := int(total)
	if count == debate.ViewerCount {
		return count, nil
	}

	if err := s.debates.UpdateViewerCount(ctx, debate.ID, count); err != nil {
		// best effort, the next heartbeat rewrites it
		s.logger.Warn().Err(err).Uint("debate_id", debate.ID).Msg("failed to persist viewer count")
	}

	if s.events != nil {
		s.events.PublishDebateEvent(ctx, dto.LiveEvent{
			Type:        dto.LiveEventViewersUpdated,
			DebateID:    debate.ID,
			ViewerCount: &count,
			SentAt:      s.now(),
		})
	}
	return count, nil
}

func (s *presenceService) loadDebate(ctx context.Context, debateID uint) (models.Debate, error) {
	debate, err := s.debates.GetByID(ctx, debateID)
	if err != nil {
		return models.Debate{}, translateDebateError(err, debateID)
	}
	return debate, nil
}

func (s *presenceService) response(debateID uint, count int, identity models.ViewerIdentity) dto.PresenceResponse {
	response := dto.PresenceResponse{
		DebateID:          debateID,
		ViewerCount:       count,
		HeartbeatInterval: int(HeartbeatInterval / time.Second),
	}
	if identity.Kind() == "session" {
		response.SessionID = identity.SessionID
	}
	return response
}
