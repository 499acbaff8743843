package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/casecamp/casecamp-api/internal/service"
	"github.com/casecamp/casecamp-api/internal/utils"
)

// AnalyticsHandler serves per-student derived analytics.
type AnalyticsHandler struct {
	service service.AnalyticsQueryService
	logger  zerolog.Logger
}

// NewAnalyticsHandler builds an analytics handler instance.
func NewAnalyticsHandler(service service.AnalyticsQueryService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/:studentId", h.studentAnalytics)
}

func (h *AnalyticsHandler) studentAnalytics(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	analytics, err := h.service.GetStudentAnalytics(c.Context(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrAnalyticsNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "analytics not found")
		}
		h.logger.Error().Err(err).Uint("student_id", studentID).Msg("failed to load student analytics")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "student analytics retrieved", analytics)
}
