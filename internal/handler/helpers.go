package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/repository"
	"github.com/noah-isme/debate-go-api/internal/service"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// domainStatus maps service sentinels to an HTTP status and client message.
func domainStatus(err error) (int, string, bool) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return http.StatusBadRequest, validationErrors.Error(), true
	case errors.Is(err, service.ErrDebateNotFound):
		return http.StatusNotFound, "debate not found", true
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "user not found", true
	case errors.Is(err, service.ErrChallengeNotFound):
		return http.StatusNotFound, "challenge not found", true
	case errors.Is(err, service.ErrNotificationNotFound):
		return http.StatusNotFound, "notification not found", true
	case errors.Is(err, service.ErrTurnViolation):
		return http.StatusForbidden, "not your turn", true
	case errors.Is(err, service.ErrNotParticipant):
		return http.StatusForbidden, "only participants can do that", true
	case errors.Is(err, service.ErrChallengeForbidden):
		return http.StatusForbidden, service.ErrChallengeForbidden.Error(), true
	case errors.Is(err, service.ErrRoundMismatch):
		return http.StatusConflict, "round mismatch, refresh the debate", true
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDebateNotLive),
		errors.Is(err, service.ErrRoundNotExpired),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, repository.ErrChallengeNotPending):
		return http.StatusConflict, err.Error(), true
	case errors.Is(err, service.ErrInvalidViewerIdentity),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrChallengeSelf),
		errors.Is(err, service.ErrInvalidRound):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, service.ErrChatRequiresUser):
		return http.StatusUnauthorized, err.Error(), true
	default:
		return 0, "", false
	}
}
