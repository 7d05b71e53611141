package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates another user already owns the handle.
	ErrUsernameTaken = errors.New("username already taken")
)

// onlineWindow is how recent a heartbeat must be for a user to count as online.
const onlineWindow = 30 * time.Second

// UserService exposes the user directory and the caller's own profile.
type UserService interface {
	Me(ctx context.Context, userID uint) (dto.CurrentUserResponse, error)
	Sync(ctx context.Context, userID uint, req dto.UserSyncRequest) (dto.CurrentUserResponse, error)
	GetByUsername(ctx context.Context, username string) (dto.UserResponse, error)
	Touch(ctx context.Context, userID uint) error
	Online(ctx context.Context, userID uint) ([]dto.UserResponse, error)
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewUserService constructs the user directory service.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *userService) Me(ctx context.Context, userID uint) (dto.CurrentUserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.CurrentUserResponse{}, translateUserError(err)
	}
	return dto.NewCurrentUserResponse(user), nil
}

// Sync creates the caller's profile on first use and updates it afterwards.
// Preference fields left out of the request keep their stored value.
func (s *userService) Sync(ctx context.Context, userID uint, req dto.UserSyncRequest) (dto.CurrentUserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := s.validator.Struct(req); err != nil {
		return dto.CurrentUserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user.ID = userID
		user.NotifyChallengeCreated = true
		user.NotifyChallengeAccepted = true
		user.NotifyDebateStarting = true
	case err != nil:
		return dto.CurrentUserResponse{}, fmt.Errorf("load user %d: %w", userID, err)
	}

	if owner, err := s.users.GetByUsername(ctx, req.Username); err == nil && owner.ID != userID {
		return dto.CurrentUserResponse{}, ErrUsernameTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CurrentUserResponse{}, fmt.Errorf("check username %q: %w", req.Username, err)
	}

	user.Username = req.Username
	user.DisplayName = req.DisplayName
	if req.ExternalID != "" {
		user.ExternalID = req.ExternalID
	}
	if user.ExternalID == "" {
		user.ExternalID = strconv.FormatUint(uint64(userID), 10)
	}
	if req.NotifyChallengeCreated != nil {
		user.NotifyChallengeCreated = *req.NotifyChallengeCreated
	}
	if req.NotifyChallengeAccepted != nil {
		user.NotifyChallengeAccepted = *req.NotifyChallengeAccepted
	}
	if req.NotifyDebateStarting != nil {
		user.NotifyDebateStarting = *req.NotifyDebateStarting
	}

	if err := s.users.Upsert(ctx, &user); err != nil {
		return dto.CurrentUserResponse{}, fmt.Errorf("save user %d: %w", userID, err)
	}

	s.logger.Debug().Uint("user_id", userID).Str("username", user.Username).Msg("user profile synced")
	return dto.NewCurrentUserResponse(user), nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (dto.UserResponse, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return dto.UserResponse{}, translateUserError(err)
	}
	return dto.NewUserResponse(user), nil
}

// Touch records a heartbeat for the caller.
func (s *userService) Touch(ctx context.Context, userID uint) error {
	if err := s.users.TouchLastSeen(ctx, userID, s.now()); err != nil {
		return translateUserError(err)
	}
	return nil
}

// Online lists users with a heartbeat inside the online window, newest first,
// leaving out the caller.
func (s *userService) Online(ctx context.Context, userID uint) ([]dto.UserResponse, error) {
	users, err := s.users.ListSeenSince(ctx, s.now().Add(-onlineWindow), userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	return dto.NewUserResponseSlice(users), nil
}

func translateUserError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
