package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/service"
	"github.com/noah-isme/debate-go-api/internal/utils"
)

// ChallengeHandler wires challenge HTTP routes.
type ChallengeHandler struct {
	service   service.ChallengeService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChallengeHandler constructs the handler.
func NewChallengeHandler(service service.ChallengeService, validator *validator.Validate, logger zerolog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "challenge_handler").Logger(),
	}
}

// Register attaches challenge endpoints. Every route requires an authenticated user.
func (h *ChallengeHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/incoming", h.incoming)
	router.Get("/outgoing", h.outgoing)
	router.Post("/:id/accept", h.accept)
	router.Post("/:id/decline", h.decline)
}

func (h *ChallengeHandler) create(c *fiber.Ctx) error {
	var payload dto.ChallengeCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	challenge, err := h.service.Create(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "challenge sent", challenge)
}

func (h *ChallengeHandler) incoming(c *fiber.Ctx) error {
	challenges, err := h.service.Incoming(requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "incoming challenges retrieved", challenges)
}

func (h *ChallengeHandler) outgoing(c *fiber.Ctx) error {
	challenges, err := h.service.Outgoing(requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "outgoing challenges retrieved", challenges)
}

func (h *ChallengeHandler) accept(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Accept(requestContext(c), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "challenge accepted", result)
}

func (h *ChallengeHandler) decline(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	challenge, err := h.service.Decline(requestContext(c), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "challenge declined", challenge)
}

func (h *ChallengeHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message, ok := domainStatus(err); ok {
		return utils.SendError(c, status, message)
	}
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
