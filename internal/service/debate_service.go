package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/observability"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

var (
	// ErrDebateNotFound indicates the debate does not exist.
	ErrDebateNotFound = errors.New("debate not found")
	// ErrInvalidTransition indicates the requested lifecycle change is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid debate transition")
	// ErrTurnViolation indicates the author is not a participant or it is not their turn.
	ErrTurnViolation = errors.New("not your turn")
	// ErrRoundMismatch indicates the message targets a round other than the current one,
	// or the debate moved on while the message was being recorded.
	ErrRoundMismatch = errors.New("round mismatch")
	// ErrRoundNotExpired indicates a forced advance was requested before the round timed out.
	ErrRoundNotExpired = errors.New("round has not expired")
	// ErrNotParticipant indicates the caller does not debate in this debate.
	ErrNotParticipant = errors.New("user is not a participant")
	// ErrEmptyContent indicates the message had nothing left after sanitisation.
	ErrEmptyContent = errors.New("content empty after sanitization")
)

const recentWindow = 24 * time.Hour

// DebateEventPublisher receives debate state changes for live viewers.
type DebateEventPublisher interface {
	PublishDebateEvent(ctx context.Context, event dto.LiveEvent)
}

// DebateStartNotifier is told when a debate goes live.
type DebateStartNotifier interface {
	DebateStarted(ctx context.Context, debate models.Debate)
}

// DebateService runs the turn/round state machine and serves debate queries.
type DebateService interface {
	Start(ctx context.Context, debateID, actorID uint) (dto.DebateResponse, error)
	SubmitMessage(ctx context.Context, debateID, authorID uint, req dto.DebateMessageRequest) (dto.SubmitMessageResponse, error)
	ForceAdvanceOnTimeout(ctx context.Context, debateID uint) (dto.DebateResponse, error)
	Get(ctx context.Context, debateID uint) (dto.DebateResponse, error)
	Messages(ctx context.Context, debateID uint) ([]dto.DebateMessageResponse, error)
	ListActive(ctx context.Context, sort repository.DebateSort) ([]dto.DebateResponse, error)
	ListLive(ctx context.Context) ([]dto.DebateResponse, error)
	ListRecent(ctx context.Context) ([]dto.DebateResponse, error)
	ListByParticipant(ctx context.Context, userID uint) ([]dto.DebateResponse, error)
	ListUpcoming(ctx context.Context, userID uint) ([]dto.DebateResponse, error)
	GetBySlug(ctx context.Context, username1, username2 string) (dto.DebateResponse, error)
	Search(ctx context.Context, term string) ([]dto.DebateResponse, error)
}

type debateService struct {
	debates   repository.DebateRepository
	messages  repository.DebateMessageRepository
	users     repository.UserRepository
	notifier  DebateStartNotifier
	events    DebateEventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewDebateService constructs the debate state machine service. notifier and events may be nil.
func NewDebateService(
	debates repository.DebateRepository,
	messages repository.DebateMessageRepository,
	users repository.UserRepository,
	notifier DebateStartNotifier,
	events DebateEventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) DebateService {
	return &debateService{
		debates:   debates,
		messages:  messages,
		users:     users,
		notifier:  notifier,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "debate_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/debate-go-api/internal/service/debate"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start takes a scheduled debate live. actorID zero means the system, otherwise the actor must be a participant.
func (s *debateService) Start(ctx context.Context, debateID, actorID uint) (dto.DebateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "debate.start", trace.WithAttributes(attribute.Int64("debate.id", int64(debateID))))
	defer span.End()

	debate, err := s.load(ctx, debateID)
	if err != nil {
		return dto.DebateResponse{}, err
	}
	if actorID != 0 {
		if _, ok := debate.SideOf(actorID); !ok {
			return dto.DebateResponse{}, ErrNotParticipant
		}
	}

	now := s.now()
	next, err := StartDebate(debate, now)
	if err != nil {
		return dto.DebateResponse{}, err
	}

	if err := s.debates.ApplyTransition(ctx, debate, next); err != nil {
		if errors.Is(err, repository.ErrStaleDebate) {
			return dto.DebateResponse{}, ErrInvalidTransition
		}
		span.RecordError(err)
		return dto.DebateResponse{}, fmt.Errorf("start debate %d: %w", debateID, err)
	}

	observability.DebateTransitions().WithLabelValues("start").Inc()
	s.logger.Info().Uint("debate_id", debateID).Uint("actor_id", actorID).Msg("debate started")

	if s.notifier != nil {
		s.notifier.DebateStarted(ctx, next)
	}

	response := dto.NewDebateResponse(next, now)
	s.publish(ctx, dto.LiveEvent{Type: dto.LiveEventDebateStarted, DebateID: debateID, Debate: &response})

	return response, nil
}

func (s *debateService) SubmitMessage(ctx context.Context, debateID, authorID uint, req dto.DebateMessageRequest) (dto.SubmitMessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "debate.submit_message", trace.WithAttributes(
		attribute.Int64("debate.id", int64(debateID)),
		attribute.Int64("debate.author_id", int64(authorID)),
		attribute.String("debate.round", string(req.Round)),
	))
	defer span.End()

	debate, err := s.load(ctx, debateID)
	if err != nil {
		return dto.SubmitMessageResponse{}, err
	}
	if !debate.IsLive() {
		return dto.SubmitMessageResponse{}, ErrDebateNotLive
	}
	side, ok := debate.SideOf(authorID)
	if !ok || side != debate.CurrentTurn {
		return dto.SubmitMessageResponse{}, ErrTurnViolation
	}
	if req.Round != debate.CurrentRound {
		return dto.SubmitMessageResponse{}, ErrRoundMismatch
	}

	if err := s.validator.Struct(req); err != nil {
		return dto.SubmitMessageResponse{}, err
	}
	content := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if content == "" {
		return dto.SubmitMessageResponse{}, ErrEmptyContent
	}

	now := s.now()
	next, err := AdvanceDebate(debate, now)
	if err != nil {
		return dto.SubmitMessageResponse{}, err
	}

	message := models.DebateMessage{
		DebateID:  debate.ID,
		AuthorID:  authorID,
		Round:     debate.CurrentRound,
		Content:   content,
		Timestamp: now,
	}
	if err := s.messages.Append(ctx, &message, debate, next); err != nil {
		if errors.Is(err, repository.ErrStaleDebate) {
			return dto.SubmitMessageResponse{}, ErrRoundMismatch
		}
		span.RecordError(err)
		return dto.SubmitMessageResponse{}, fmt.Errorf("append message to debate %d: %w", debateID, err)
	}

	observability.DebateMessages().Inc()
	observability.DebateTransitions().WithLabelValues(transitionKind(next, "message")).Inc()

	response := dto.SubmitMessageResponse{
		Message: dto.NewDebateMessageResponse(message),
		Debate:  dto.NewDebateResponse(next, now),
	}
	s.publish(ctx, dto.LiveEvent{Type: dto.LiveEventDebateMessage, DebateID: debateID, Message: &response.Message})
	s.publishProgress(ctx, response.Debate)

	return response, nil
}

func (s *debateService) ForceAdvanceOnTimeout(ctx context.Context, debateID uint) (dto.DebateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "debate.force_advance", trace.WithAttributes(attribute.Int64("debate.id", int64(debateID))))
	defer span.End()

	debate, err := s.load(ctx, debateID)
	if err != nil {
		return dto.DebateResponse{}, err
	}
	if !debate.IsLive() {
		return dto.DebateResponse{}, ErrDebateNotLive
	}

	now := s.now()
	if !RoundExpired(debate, now) {
		return dto.DebateResponse{}, ErrRoundNotExpired
	}

	next, err := AdvanceDebate(debate, now)
	if err != nil {
		return dto.DebateResponse{}, err
	}
	if err := s.debates.ApplyTransition(ctx, debate, next); err != nil {
		if errors.Is(err, repository.ErrStaleDebate) {
			return dto.DebateResponse{}, ErrRoundMismatch
		}
		span.RecordError(err)
		return dto.DebateResponse{}, fmt.Errorf("advance debate %d: %w", debateID, err)
	}

	observability.DebateTransitions().WithLabelValues(transitionKind(next, "timeout")).Inc()
	s.logger.Info().
		Uint("debate_id", debateID).
		Str("round", string(next.CurrentRound)).
		Str("turn", string(next.CurrentTurn)).
		Str("status", string(next.Status)).
		Msg("debate advanced on timeout")

	response := dto.NewDebateResponse(next, now)
	s.publishProgress(ctx, response)
	return response, nil
}

func (s *debateService) Get(ctx context.Context, debateID uint) (dto.DebateResponse, error) {
	debate, err := s.load(ctx, debateID)
	if err != nil {
		return dto.DebateResponse{}, err
	}
	return dto.NewDebateResponse(debate, s.now()), nil
}

// Messages returns the ledger ordered by round then order within the round.
func (s *debateService) Messages(ctx context.Context, debateID uint) ([]dto.DebateMessageResponse, error) {
	if _, err := s.load(ctx, debateID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByDebate(ctx, debateID)
	if err != nil {
		return nil, fmt.Errorf("list messages for debate %d: %w", debateID, err)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		ri, rj := messages[i].Round.Index(), messages[j].Round.Index()
		if ri != rj {
			return ri < rj
		}
		return messages[i].Order < messages[j].Order
	})

	return dto.NewDebateMessageResponseSlice(messages), nil
}

func (s *debateService) ListActive(ctx context.Context, order repository.DebateSort) ([]dto.DebateResponse, error) {
	if order != repository.DebateSortRecent {
		order = repository.DebateSortHot
	}
	debates, err := s.debates.ListLive(ctx, order, time.Time{}, 0)
	if err != nil {
		return nil, fmt.Errorf("list live debates: %w", err)
	}
	return dto.NewDebateResponseSlice(debates, s.now()), nil
}

// ListLive returns debates that went live within the recent window, newest start first.
func (s *debateService) ListLive(ctx context.Context) ([]dto.DebateResponse, error) {
	now := s.now()
	debates, err := s.debates.ListLive(ctx, repository.DebateSortRecent, now.Add(-recentWindow), 0)
	if err != nil {
		return nil, fmt.Errorf("list live debates: %w", err)
	}
	return dto.NewDebateResponseSlice(debates, now), nil
}

func (s *debateService) ListRecent(ctx context.Context) ([]dto.DebateResponse, error) {
	now := s.now()
	debates, err := s.debates.ListStartedSince(ctx, now.Add(-recentWindow), 0)
	if err != nil {
		return nil, fmt.Errorf("list recent debates: %w", err)
	}
	return dto.NewDebateResponseSlice(debates, now), nil
}

func (s *debateService) ListByParticipant(ctx context.Context, userID uint) ([]dto.DebateResponse, error) {
	debates, err := s.debates.ListCompletedByParticipant(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list debates of user %d: %w", userID, err)
	}
	return dto.NewDebateResponseSlice(debates, s.now()), nil
}

func (s *debateService) ListUpcoming(ctx context.Context, userID uint) ([]dto.DebateResponse, error) {
	debates, err := s.debates.ListUpcomingByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list upcoming debates of user %d: %w", userID, err)
	}

	seen := make(map[uint]struct{}, len(debates))
	unique := debates[:0]
	for _, debate := range debates {
		if _, ok := seen[debate.ID]; ok {
			continue
		}
		seen[debate.ID] = struct{}{}
		unique = append(unique, debate)
	}

	return dto.NewDebateResponseSlice(unique, s.now()), nil
}

// GetBySlug finds the live debate between two handles, in either order.
func (s *debateService) GetBySlug(ctx context.Context, username1, username2 string) (dto.DebateResponse, error) {
	first, err := s.users.GetByUsername(ctx, username1)
	if err != nil {
		return dto.DebateResponse{}, translateUserError(err)
	}
	second, err := s.users.GetByUsername(ctx, username2)
	if err != nil {
		return dto.DebateResponse{}, translateUserError(err)
	}

	debate, err := s.debates.FindLiveBetween(ctx, first.ID, second.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DebateResponse{}, ErrDebateNotFound
		}
		return dto.DebateResponse{}, fmt.Errorf("find live debate between %q and %q: %w", username1, username2, err)
	}
	return dto.NewDebateResponse(debate, s.now()), nil
}

func (s *debateService) Search(ctx context.Context, term string) ([]dto.DebateResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []dto.DebateResponse{}, nil
	}

	debates, err := s.debates.SearchByTitle(ctx, term, 20)
	if err != nil {
		return nil, fmt.Errorf("search debates: %w", err)
	}
	return dto.NewDebateResponseSlice(debates, s.now()), nil
}

func (s *debateService) load(ctx context.Context, debateID uint) (models.Debate, error) {
	debate, err := s.debates.GetByID(ctx, debateID)
	if err != nil {
		return models.Debate{}, translateDebateError(err, debateID)
	}
	return debate, nil
}

func translateDebateError(err error, debateID uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDebateNotFound
	}
	return fmt.Errorf("load debate %d: %w", debateID, err)
}

func (s *debateService) publishProgress(ctx context.Context, debate dto.DebateResponse) {
	eventType := dto.LiveEventDebateAdvanced
	if debate.Status == models.DebateStatusCompleted {
		eventType = dto.LiveEventDebateCompleted
	}
	s.publish(ctx, dto.LiveEvent{Type: eventType, DebateID: debate.ID, Debate: &debate})
}

func (s *debateService) publish(ctx context.Context, event dto.LiveEvent) {
	if s.events == nil {
		return
	}
	event.SentAt = s.now()
	s.events.PublishDebateEvent(ctx, event)
}

func transitionKind(next models.Debate, cause string) string {
	if next.Status == models.DebateStatusCompleted {
		return "complete"
	}
	return cause
}
