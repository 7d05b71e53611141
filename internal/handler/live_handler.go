package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/service"
	"github.com/noah-isme/debate-go-api/internal/utils"
)

// LiveHandler wires the live room websocket and spectator chat endpoints.
type LiveHandler struct {
	service     service.LiveService
	logger      zerolog.Logger
	chatLimiter fiber.Handler
}

// NewLiveHandler creates a live room handler. chatLimiter may be nil.
func NewLiveHandler(service service.LiveService, chatLimiter fiber.Handler, logger zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		service:     service,
		logger:      logger.With().Str("component", "live_handler").Logger(),
		chatLimiter: chatLimiter,
	}
}

// Register binds live routes under the provided router group. The group is expected to run JWTOptional.
func (h *LiveHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Get("/:id/chat", h.history)

	send := middleware.WithAuth(h.send, middleware.AuthOptions{RequireUser: true})
	if h.chatLimiter != nil {
		router.Post("/:id/chat", h.chatLimiter, send)
		return
	}
	router.Post("/:id/chat", send)
}

func (h *LiveHandler) handleConnection(conn *websocket.Conn) {
	debateID, err := strconv.ParseUint(strings.TrimSpace(conn.Query("debate_id")), 10, 64)
	if err != nil || debateID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "debate_id required"))
		_ = conn.Close()
		return
	}

	userID := websocketUserID(conn)
	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.LiveConnectionOptions{
		DebateID:      uint(debateID),
		UserID:        userID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Uint64("debate_id", debateID).Msg("live websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Uint64("debate_id", debateID).Msg("live websocket disconnected")
}

func (h *LiveHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var beforePtr *time.Time
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		beforePtr = &parsed
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 || limit > 100 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.service.History(requestContext(c), id, beforePtr, limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "chat history", messages)
}

func (h *LiveHandler) send(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SpectatorMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.Send(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *LiveHandler) handleError(c *fiber.Ctx, err error) error {
	if status, message, ok := domainStatus(err); ok {
		return utils.SendError(c, status, message)
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func websocketUserID(conn *websocket.Conn) uint {
	switch v := conn.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
