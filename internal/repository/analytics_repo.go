package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casecamp/casecamp-api/internal/models"
)

// AnalyticsRepository persists per-student rollup documents.
type AnalyticsRepository interface {
	GetByStudent(ctx context.Context, studentID uint) (models.AnalyticsRollup, error)
	Upsert(ctx context.Context, rollup *models.AnalyticsRollup) error
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) GetByStudent(ctx context.Context, studentID uint) (models.AnalyticsRollup, error) {
	var rollup models.AnalyticsRollup
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&rollup).Error; err != nil {
		return models.AnalyticsRollup{}, err
	}

	return rollup, nil
}

// Upsert overwrites the student's rollup in one statement. The rebuild
// replaces every derived field, so the conflict branch assigns them all.
func (r *analyticsRepository) Upsert(ctx context.Context, rollup *models.AnalyticsRollup) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_completed_cases",
			"total_score",
			"weekly_performance",
			"specialty_performance",
			"activity_heatmap",
			"last_updated",
			"updated_at",
		}),
	}).Create(rollup).Error
}
