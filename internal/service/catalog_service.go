package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

var (
	// ErrWeekNotFound indicates the week was not located.
	ErrWeekNotFound = errors.New("week not found")
	// ErrWeekDatesInvalid indicates end date precedes start date.
	ErrWeekDatesInvalid = errors.New("week end date must be after start date")
)

// CatalogService manages the reference data the engine scores against:
// weeks and their cases. Cases are append-only from the engine's point
// of view; there is no update path that would re-trigger scoring.
type CatalogService interface {
	CreateWeek(ctx context.Context, payload dto.WeekCreateRequest) (dto.WeekResponse, error)
	ListWeeks(ctx context.Context) ([]dto.WeekResponse, error)
	ActivateWeek(ctx context.Context, weekID uint) (dto.WeekResponse, error)
	CreateCase(ctx context.Context, payload dto.CaseCreateRequest) (dto.CaseResponse, error)
	ListCases(ctx context.Context, weekID *uint) ([]dto.CaseResponse, error)
}

type catalogService struct {
	weeks     repository.WeekRepository
	cases     repository.CaseRepository
	publisher trigger.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(weeks repository.WeekRepository, cases repository.CaseRepository, publisher trigger.Publisher, validate *validator.Validate, logger zerolog.Logger) CatalogService {
	return &catalogService{
		weeks:     weeks,
		cases:     cases,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "catalog_service").Logger(),
	}
}

func (s *catalogService) CreateWeek(ctx context.Context, payload dto.WeekCreateRequest) (dto.WeekResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WeekResponse{}, err
	}

	if !payload.EndDate.After(payload.StartDate) {
		return dto.WeekResponse{}, ErrWeekDatesInvalid
	}

	week := models.Week{
		Title:     payload.Title,
		StartDate: payload.StartDate.UTC(),
		EndDate:   payload.EndDate.UTC(),
	}

	if err := s.weeks.Create(ctx, &week); err != nil {
		return dto.WeekResponse{}, err
	}

	return dto.NewWeekResponse(week), nil
}

func (s *catalogService) ListWeeks(ctx context.Context) ([]dto.WeekResponse, error) {
	weeks, err := s.weeks.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewWeekResponseSlice(weeks), nil
}

// ActivateWeek flips the active flag and publishes the week change so
// the notification consumer can announce it. Already-active weeks are
// returned unchanged without an event.
func (s *catalogService) ActivateWeek(ctx context.Context, weekID uint) (dto.WeekResponse, error) {
	week, err := s.weeks.GetByID(ctx, weekID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WeekResponse{}, ErrWeekNotFound
		}
		return dto.WeekResponse{}, err
	}

	if week.IsActive {
		return dto.NewWeekResponse(week), nil
	}

	before := week
	week.IsActive = true
	if err := s.weeks.Update(ctx, &week); err != nil {
		return dto.WeekResponse{}, err
	}

	if s.publisher != nil {
		event := trigger.WeekChangeEvent{
			Before: &before,
			After:  &week,
			SentAt: time.Now().UTC(),
		}
		if err := s.publisher.PublishWeekChange(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("week_id", weekID).Msg("failed to publish week change event")
		}
	}

	return dto.NewWeekResponse(week), nil
}

func (s *catalogService) CreateCase(ctx context.Context, payload dto.CaseCreateRequest) (dto.CaseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CaseResponse{}, err
	}

	if _, err := s.weeks.GetByID(ctx, payload.WeekID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CaseResponse{}, ErrWeekNotFound
		}
		return dto.CaseResponse{}, err
	}

	c := models.Case{
		WeekID:     payload.WeekID,
		Title:      payload.Title,
		Speciality: payload.Speciality,
		Level:      payload.Level,
	}

	if err := s.cases.Create(ctx, &c); err != nil {
		return dto.CaseResponse{}, err
	}

	return dto.NewCaseResponse(c), nil
}

func (s *catalogService) ListCases(ctx context.Context, weekID *uint) ([]dto.CaseResponse, error) {
	cases, err := s.cases.List(ctx, weekID)
	if err != nil {
		return nil, err
	}

	return dto.NewCaseResponseSlice(cases), nil
}
