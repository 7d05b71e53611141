package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/service"
	"github.com/noah-isme/debate-go-api/internal/utils"
)

// NotificationHandler manages SSE notification streams and the inbox.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes. The group is expected to run JWTProtected.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/stream", h.stream)
	router.Patch("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}
	unreadOnly := c.QueryBool("unread", false)

	notifications, err := h.service.List(requestContext(c), userID, unreadOnly, limit, offset)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list notifications")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))

	stream, cleanup := h.service.Subscribe(userID)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	notification, err := h.service.MarkRead(requestContext(c), id, userID)
	if err != nil {
		if status, message, ok := domainStatus(err); ok {
			return utils.SendError(c, status, message)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to mark notification read")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

func writeNotificationEvent(w *bufio.Writer, notification interface{}) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
