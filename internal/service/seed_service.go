package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService bulk-loads reference data for development environments.
type SeedService interface {
	Seed(ctx context.Context, payload dto.SeedRequest) (dto.SeedResponse, error)
}

type seedService struct {
	weeks    repository.WeekRepository
	cases    repository.CaseRepository
	students repository.StudentRepository
	enabled  bool
	token    string
	logger   zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(weeks repository.WeekRepository, cases repository.CaseRepository, students repository.StudentRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		weeks:    weeks,
		cases:    cases,
		students: students,
		enabled:  enabled,
		token:    token,
		logger:   logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) Seed(ctx context.Context, payload dto.SeedRequest) (dto.SeedResponse, error) {
	if !s.enabled {
		return dto.SeedResponse{}, ErrSeedDisabled
	}
	if !s.validateToken(payload.Token) {
		return dto.SeedResponse{}, ErrSeedUnauthorized
	}

	var response dto.SeedResponse

	affected, err := s.weeks.UpsertBatch(ctx, normalizeWeeks(payload.Weeks))
	if err != nil {
		return dto.SeedResponse{}, err
	}
	response.Weeks = affected

	affected, err = s.cases.UpsertBatch(ctx, payload.Cases)
	if err != nil {
		return dto.SeedResponse{}, err
	}
	response.Cases = affected

	affected, err = s.students.UpsertBatch(ctx, payload.Students)
	if err != nil {
		return dto.SeedResponse{}, err
	}
	response.Students = affected

	s.logger.Info().
		Int64("weeks", response.Weeks).
		Int64("cases", response.Cases).
		Int64("students", response.Students).
		Msg("reference data seeded")

	return response, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtleConstantTimeCompare(expected, strings.TrimSpace(token))
}

func subtleConstantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	mismatch := byte(0)
	for i := 0; i < len(a); i++ {
		mismatch |= a[i] ^ b[i]
	}
	return mismatch == 0
}

func normalizeWeeks(items []models.Week) []models.Week {
	for i := range items {
		items[i].StartDate = items[i].StartDate.UTC()
		items[i].EndDate = items[i].EndDate.UTC()
	}
	return items
}
