package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/repository"
)

// ErrAnalyticsNotFound indicates no rollup exists for the student yet.
// Rollups are created lazily by the aggregator, so a fresh student has
// none until their first scored submission.
var ErrAnalyticsNotFound = errors.New("analytics rollup not found")

// AnalyticsQueryService serves the per-student rollup documents.
type AnalyticsQueryService interface {
	GetStudentAnalytics(ctx context.Context, studentID uint) (dto.StudentAnalyticsResponse, error)
}

type analyticsQueryService struct {
	rollups repository.AnalyticsRepository
	logger  zerolog.Logger
}

// NewAnalyticsQueryService constructs the analytics read service.
func NewAnalyticsQueryService(rollups repository.AnalyticsRepository, logger zerolog.Logger) AnalyticsQueryService {
	return &analyticsQueryService{
		rollups: rollups,
		logger:  logger.With().Str("component", "analytics_query_service").Logger(),
	}
}

func (s *analyticsQueryService) GetStudentAnalytics(ctx context.Context, studentID uint) (dto.StudentAnalyticsResponse, error) {
	rollup, err := s.rollups.GetByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentAnalyticsResponse{}, ErrAnalyticsNotFound
		}
		return dto.StudentAnalyticsResponse{}, err
	}

	return dto.NewStudentAnalyticsResponse(rollup), nil
}
