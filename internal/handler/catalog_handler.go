package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/service"
	"github.com/casecamp/casecamp-api/internal/utils"
)

// CatalogHandler manages week and case endpoints.
type CatalogHandler struct {
	service service.CatalogService
	logger  zerolog.Logger
}

// NewCatalogHandler builds a catalog handler instance.
func NewCatalogHandler(service service.CatalogService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		logger:  logger.With().Str("component", "catalog_handler").Logger(),
	}
}

// RegisterWeeks attaches week routes to the provided router group.
func (h *CatalogHandler) RegisterWeeks(router fiber.Router) {
	router.Get("", h.listWeeks)
	router.Post("", h.createWeek)
	router.Post("/:id/activate", h.activateWeek)
}

// RegisterCases attaches case routes to the provided router group.
func (h *CatalogHandler) RegisterCases(router fiber.Router) {
	router.Get("", h.listCases)
	router.Post("", h.createCase)
}

func (h *CatalogHandler) listWeeks(c *fiber.Ctx) error {
	weeks, err := h.service.ListWeeks(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "weeks retrieved", weeks)
}

func (h *CatalogHandler) createWeek(c *fiber.Ctx) error {
	var payload dto.WeekCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	week, err := h.service.CreateWeek(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "week created", week)
}

func (h *CatalogHandler) activateWeek(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	week, err := h.service.ActivateWeek(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "week activated", week)
}

func (h *CatalogHandler) listCases(c *fiber.Ctx) error {
	weekID, err := parseQueryUint(c, "week_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	cases, err := h.service.ListCases(c.Context(), weekID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "cases retrieved", cases)
}

func (h *CatalogHandler) createCase(c *fiber.Ctx) error {
	var payload dto.CaseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.CreateCase(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "case created", created)
}

func (h *CatalogHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrWeekNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "week not found")
	case errors.Is(err, service.ErrWeekDatesInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, "week end date must be after start date")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
