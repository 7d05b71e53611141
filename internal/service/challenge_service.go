package service

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/noah-isme/debate-go-api/internal/repository"
)

var (
	// ErrChallengeNotFound indicates the challenge does not exist.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeForbidden indicates only the recipient may answer a challenge.
	ErrChallengeForbidden = errors.New("only the recipient can respond to this challenge")
	// ErrChallengeSelf indicates a user tried to challenge themselves.
	ErrChallengeSelf = errors.New("cannot challenge yourself")
)

// ChallengeNotifier is told about challenge lifecycle events.
type ChallengeNotifier interface {
	ChallengeCreated(ctx context.Context, challenge models.Challenge)
	ChallengeAccepted(ctx context.Context, challenge models.Challenge, debateID uint)
}

// ChallengeService manages debate invitations between users.
type ChallengeService interface {
	Create(ctx context.Context, challengerID uint, req dto.ChallengeCreateRequest) (dto.ChallengeResponse, error)
	Incoming(ctx context.Context, userID uint) ([]dto.ChallengeResponse, error)
	Outgoing(ctx context.Context, userID uint) ([]dto.ChallengeResponse, error)
	Accept(ctx context.Context, challengeID, userID uint) (dto.ChallengeAcceptResponse, error)
	Decline(ctx context.Context, challengeID, userID uint) (dto.ChallengeResponse, error)
}

type challengeService struct {
	challenges repository.ChallengeRepository
	debates    repository.DebateRepository
	users      repository.UserRepository
	notifier   ChallengeNotifier
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewChallengeService constructs the challenge service. notifier may be nil.
func NewChallengeService(
	challenges repository.ChallengeRepository,
	debates repository.DebateRepository,
	users repository.UserRepository,
	notifier ChallengeNotifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) ChallengeService {
	return &challengeService{
		challenges: challenges,
		debates:    debates,
		users:      users,
		notifier:   notifier,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "challenge_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/debate-go-api/internal/service/challenge"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *challengeService) Create(ctx context.Context, challengerID uint, req dto.ChallengeCreateRequest) (dto.ChallengeResponse, error) {
	req.Title = strings.TrimSpace(s.sanitizer.Sanitize(req.Title))
	if err := s.validator.Struct(req); err != nil {
		return dto.ChallengeResponse{}, err
	}
	if req.RecipientID == challengerID {
		return dto.ChallengeResponse{}, ErrChallengeSelf
	}

	ctx, span := s.tracer.Start(ctx, "challenge.create", trace.WithAttributes(
		attribute.Int64("challenge.challenger_id", int64(challengerID)),
		attribute.Int64("challenge.recipient_id", int64(req.RecipientID)),
	))
	defer span.End()

	if _, err := s.users.GetByID(ctx, req.RecipientID); err != nil {
		return dto.ChallengeResponse{}, translateUserError(err)
	}

	challenge := models.Challenge{
		ChallengerID:  challengerID,
		RecipientID:   req.RecipientID,
		Title:         req.Title,
		ScheduledTime: req.ScheduledTime.UTC(),
		Status:        models.ChallengeStatusPending,
	}
	if err := s.challenges.Create(ctx, &challenge); err != nil {
		span.RecordError(err)
		return dto.ChallengeResponse{}, fmt.Errorf("create challenge: %w", err)
	}

	s.logger.Info().
		Uint("challenge_id", challenge.ID).
		Uint("challenger_id", challengerID).
		Uint("recipient_id", req.RecipientID).
		Msg("challenge created")

	if s.notifier != nil {
		s.notifier.ChallengeCreated(ctx, challenge)
	}

	return dto.NewChallengeResponse(challenge), nil
}

func (s *challengeService) Incoming(ctx context.Context, userID uint) ([]dto.ChallengeResponse, error) {
	challenges, err := s.challenges.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming challenges of user %d: %w", userID, err)
	}
	return dto.NewChallengeResponseSlice(challenges), nil
}

// Outgoing lists the caller's challenges, hiding those whose debate already finished.
func (s *challengeService) Outgoing(ctx context.Context, userID uint) ([]dto.ChallengeResponse, error) {
	challenges, err := s.challenges.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing challenges of user %d: %w", userID, err)
	}

	ids := make([]uint, 0, len(challenges))
	for _, challenge := range challenges {
		if challenge.Status == models.ChallengeStatusAccepted {
			ids = append(ids, challenge.ID)
		}
	}

	completed, err := s.debates.CompletedChallengeIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve completed challenges: %w", err)
	}

	visible := challenges[:0]
	for _, challenge := range challenges {
		if _, done := completed[challenge.ID]; done {
			continue
		}
		visible = append(visible, challenge)
	}

	return dto.NewChallengeResponseSlice(visible), nil
}

// Accept marks the challenge accepted and schedules the debate it describes.
func (s *challengeService) Accept(ctx context.Context, challengeID, userID uint) (dto.ChallengeAcceptResponse, error) {
	ctx, span := s.tracer.Start(ctx, "challenge.accept", trace.WithAttributes(attribute.Int64("challenge.id", int64(challengeID))))
	defer span.End()

	challenge, err := s.loadForResponse(ctx, challengeID, userID)
	if err != nil {
		return dto.ChallengeAcceptResponse{}, err
	}

	now := s.now()
	debate := models.Debate{
		Title:              challenge.Title,
		Participant1ID:     challenge.ChallengerID,
		Participant2ID:     challenge.RecipientID,
		Status:             models.DebateStatusScheduled,
		ScheduledStartTime: challenge.ScheduledTime.UTC(),
		CurrentTurn:        models.TurnParticipant1,
		CurrentRound:       models.RoundOpeningRemarks,
	}

	if err := s.challenges.Accept(ctx, &challenge, &debate, now); err != nil {
		if errors.Is(err, repository.ErrChallengeNotPending) {
			return dto.ChallengeAcceptResponse{}, err
		}
		span.RecordError(err)
		return dto.ChallengeAcceptResponse{}, fmt.Errorf("accept challenge %d: %w", challengeID, err)
	}

	s.logger.Info().Uint("challenge_id", challengeID).Uint("debate_id", debate.ID).Msg("challenge accepted")

	if s.notifier != nil {
		s.notifier.ChallengeAccepted(ctx, challenge, debate.ID)
	}

	return dto.ChallengeAcceptResponse{
		Challenge: dto.NewChallengeResponse(challenge),
		Debate:    dto.NewDebateResponse(debate, now),
	}, nil
}

func (s *challengeService) Decline(ctx context.Context, challengeID, userID uint) (dto.ChallengeResponse, error) {
	challenge, err := s.loadForResponse(ctx, challengeID, userID)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	if err := s.challenges.Decline(ctx, &challenge, s.now()); err != nil {
		if errors.Is(err, repository.ErrChallengeNotPending) {
			return dto.ChallengeResponse{}, err
		}
		return dto.ChallengeResponse{}, fmt.Errorf("decline challenge %d: %w", challengeID, err)
	}

	s.logger.Info().Uint("challenge_id", challengeID).Msg("challenge declined")
	return dto.NewChallengeResponse(challenge), nil
}

func (s *challengeService) loadForResponse(ctx context.Context, challengeID, userID uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, fmt.Errorf("load challenge %d: %w", challengeID, err)
	}
	if challenge.RecipientID != userID {
		return models.Challenge{}, ErrChallengeForbidden
	}
	if !challenge.IsPending() {
		return models.Challenge{}, repository.ErrChallengeNotPending
	}
	return challenge, nil
}
