package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/casecamp/casecamp-api/internal/service"
	"github.com/casecamp/casecamp-api/internal/utils"
)

// LeaderboardHandler serves the derived standings.
type LeaderboardHandler struct {
	service service.LeaderboardService
	logger  zerolog.Logger
}

// NewLeaderboardHandler builds a leaderboard handler instance.
func NewLeaderboardHandler(service service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("/global", h.global)
	router.Get("/weekly/:weekId", h.weekly)
}

func (h *LeaderboardHandler) global(c *fiber.Ctx) error {
	leaderboard, err := h.service.Global(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load global leaderboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "global leaderboard retrieved", leaderboard)
}

func (h *LeaderboardHandler) weekly(c *fiber.Ctx) error {
	weekID, err := parseUintParam(c, "weekId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	leaderboard, err := h.service.Weekly(c.Context(), weekID)
	if err != nil {
		h.logger.Error().Err(err).Uint("week_id", weekID).Msg("failed to load weekly leaderboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "weekly leaderboard retrieved", leaderboard)
}
