package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/service"
	"github.com/noah-isme/debate-go-api/internal/utils"
)

// AdminSweepHandler lets operators trigger a sweep pass on demand.
type AdminSweepHandler struct {
	service service.SweepService
	logger  zerolog.Logger
}

// NewAdminSweepHandler constructs the handler.
func NewAdminSweepHandler(service service.SweepService, logger zerolog.Logger) *AdminSweepHandler {
	return &AdminSweepHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_sweep_handler").Logger(),
	}
}

// Register attaches the sweep trigger. The group is expected to require the admin role.
func (h *AdminSweepHandler) Register(router fiber.Router) {
	router.Post("/sweep", h.run)
}

func (h *AdminSweepHandler) run(c *fiber.Ctx) error {
	report, err := h.service.RunOnce(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("manual sweep failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	requestLogger(h.logger, c).Info().
		Uint("actor_id", userIDFromContext(c)).
		Int("promoted", report.Promoted).
		Int("timed_out", report.TimedOut).
		Msg("manual sweep completed")
	return utils.SendSuccess(c, "sweep completed", report)
}
