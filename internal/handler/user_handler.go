package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/service"
	"github.com/noah-isme/debate-go-api/internal/utils"
)

// UserHandler serves the caller's profile, the user directory and per-user debate lists.
type UserHandler struct {
	users   service.UserService
	debates service.DebateService
	logger  zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(users service.UserService, debates service.DebateService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		debates: debates,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches user routes. The group is expected to run JWTProtected.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Put("/me", h.sync)
	router.Post("/me/heartbeat", h.heartbeat)
	router.Get("/online", h.online)
	router.Get("/:id/debates", h.debateHistory)
	router.Get("/:id/debates/upcoming", h.upcoming)
	router.Get("/:username", h.byUsername)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	user, err := h.users.Me(requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *UserHandler) sync(c *fiber.Ctx) error {
	var payload dto.UserSyncRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.Sync(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "profile saved", user)
}

func (h *UserHandler) heartbeat(c *fiber.Ctx) error {
	if err := h.users.Touch(requestContext(c), userIDFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "heartbeat recorded", nil)
}

func (h *UserHandler) online(c *fiber.Ctx) error {
	users, err := h.users.Online(requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "online users retrieved", users)
}

func (h *UserHandler) byUsername(c *fiber.Ctx) error {
	user, err := h.users.GetByUsername(requestContext(c), c.Params("username"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user retrieved", user)
}

func (h *UserHandler) debateHistory(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	debates, err := h.debates.ListByParticipant(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "debates retrieved", debates)
}

func (h *UserHandler) upcoming(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	debates, err := h.debates.ListUpcoming(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "upcoming debates retrieved", debates)
}

func (h *UserHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message, ok := domainStatus(err); ok {
		return utils.SendError(c, status, message)
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
