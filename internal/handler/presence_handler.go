package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/service"
	"github.com/noah-isme/debate-go-api/internal/utils"
)

// PresenceHandler records spectator heartbeats. Anonymous viewers are allowed.
type PresenceHandler struct {
	service   service.PresenceService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPresenceHandler constructs the handler.
func NewPresenceHandler(service service.PresenceService, validator *validator.Validate, logger zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "presence_handler").Logger(),
	}
}

// Register attaches viewer routes under the debates group.
func (h *PresenceHandler) Register(router fiber.Router) {
	router.Post("/:id/viewers/heartbeat", h.heartbeat)
	router.Delete("/:id/viewers", h.depart)
}

func (h *PresenceHandler) heartbeat(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	identity, err := h.identity(c, true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	presence, err := h.service.Heartbeat(requestContext(c), id, identity)
	if err != nil {
		return h.handleError(c, err)
	}
	if presence.SessionID != "" {
		c.Set(middleware.ViewerSessionHeader, presence.SessionID)
	}
	return utils.SendSuccess(c, "heartbeat recorded", presence)
}

func (h *PresenceHandler) depart(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	identity, err := h.identity(c, false)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	presence, err := h.service.Depart(requestContext(c), id, identity)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "viewer removed", presence)
}

// identity resolves the viewer from the bearer token, else from the session token in the body or header.
// When mint is set an anonymous viewer without a token gets a fresh one.
func (h *PresenceHandler) identity(c *fiber.Ctx, mint bool) (models.ViewerIdentity, error) {
	if userID := userIDFromContext(c); userID != 0 {
		return models.ViewerIdentity{UserID: &userID}, nil
	}

	var payload dto.ViewerPresenceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return models.ViewerIdentity{}, fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
	}
	if payload.SessionID == "" {
		payload.SessionID = c.Get(middleware.ViewerSessionHeader)
	}
	payload.SessionID = strings.TrimSpace(payload.SessionID)

	if payload.SessionID == "" {
		if !mint {
			return models.ViewerIdentity{}, service.ErrInvalidViewerIdentity
		}
		payload.SessionID = uuid.NewString()
	}

	if err := h.validator.Struct(payload); err != nil {
		return models.ViewerIdentity{}, err
	}
	return models.ViewerIdentity{SessionID: payload.SessionID}, nil
}

func (h *PresenceHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message, ok := domainStatus(err); ok {
		return utils.SendError(c, status, message)
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
