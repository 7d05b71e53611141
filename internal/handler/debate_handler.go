package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/repository"
	"github.com/noah-isme/debate-go-api/internal/service"
	"github.com/noah-isme/debate-go-api/internal/utils"
)

// DebateHandler exposes the debate state machine over HTTP.
type DebateHandler struct {
	service        service.DebateService
	validator      *validator.Validate
	logger         zerolog.Logger
	messageLimiter fiber.Handler
}

// NewDebateHandler constructs the handler. messageLimiter may be nil.
func NewDebateHandler(service service.DebateService, validator *validator.Validate, messageLimiter fiber.Handler, logger zerolog.Logger) *DebateHandler {
	return &DebateHandler{
		service:        service,
		validator:      validator,
		logger:         logger.With().Str("component", "debate_handler").Logger(),
		messageLimiter: messageLimiter,
	}
}

// Register attaches debate endpoints. The group is expected to run JWTOptional.
func (h *DebateHandler) Register(router fiber.Router) {
	router.Get("/active", h.listActive)
	router.Get("/live", h.listLive)
	router.Get("/recent", h.listRecent)
	router.Get("/search", h.search)
	router.Get("/slug/:user1/:user2", h.getBySlug)
	router.Get("/:id", h.get)
	router.Get("/:id/messages", h.messages)
	router.Post("/:id/start", middleware.WithAuth(h.start, middleware.AuthOptions{RequireUser: true}))

	submit := middleware.WithAuth(h.submitMessage, middleware.AuthOptions{RequireUser: true})
	if h.messageLimiter != nil {
		router.Post("/:id/messages", h.messageLimiter, submit)
		return
	}
	router.Post("/:id/messages", submit)
}

func (h *DebateHandler) listActive(c *fiber.Ctx) error {
	order := repository.DebateSort(strings.ToLower(strings.TrimSpace(c.Query("sort", string(repository.DebateSortHot)))))
	if order != repository.DebateSortHot && order != repository.DebateSortRecent {
		return utils.SendError(c, fiber.StatusBadRequest, "sort must be hot or recent")
	}

	debates, err := h.service.ListActive(requestContext(c), order)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "active debates retrieved", debates)
}

func (h *DebateHandler) listLive(c *fiber.Ctx) error {
	debates, err := h.service.ListLive(requestContext(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "live debates retrieved", debates)
}

func (h *DebateHandler) listRecent(c *fiber.Ctx) error {
	debates, err := h.service.ListRecent(requestContext(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "recent debates retrieved", debates)
}

func (h *DebateHandler) search(c *fiber.Ctx) error {
	debates, err := h.service.Search(requestContext(c), c.Query("q"))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "debates found", debates)
}

func (h *DebateHandler) getBySlug(c *fiber.Ctx) error {
	debate, err := h.service.GetBySlug(requestContext(c), c.Params("user1"), c.Params("user2"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "debate retrieved", debate)
}

func (h *DebateHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	debate, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "debate retrieved", debate)
}

func (h *DebateHandler) messages(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	messages, err := h.service.Messages(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "debate messages retrieved", messages)
}

func (h *DebateHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	debate, err := h.service.Start(requestContext(c), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "debate started", debate)
}

func (h *DebateHandler) submitMessage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DebateMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.SubmitMessage(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message recorded", result)
}

func (h *DebateHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message, ok := domainStatus(err); ok {
		return utils.SendError(c, status, message)
	}
	return h.internalError(c, err)
}

func (h *DebateHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
