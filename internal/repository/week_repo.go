package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casecamp/casecamp-api/internal/models"
)

// WeekRepository defines data operations for scoring weeks.
type WeekRepository interface {
	List(ctx context.Context) ([]models.Week, error)
	GetByID(ctx context.Context, id uint) (models.Week, error)
	Create(ctx context.Context, week *models.Week) error
	Update(ctx context.Context, week *models.Week) error
	UpsertBatch(ctx context.Context, items []models.Week) (int64, error)
}

type weekRepository struct {
	db *gorm.DB
}

// NewWeekRepository instantiates the repository.
func NewWeekRepository(db *gorm.DB) WeekRepository {
	return &weekRepository{db: db}
}

func (r *weekRepository) List(ctx context.Context) ([]models.Week, error) {
	var weeks []models.Week
	if err := r.db.WithContext(ctx).Order("start_date DESC").Find(&weeks).Error; err != nil {
		return nil, err
	}

	return weeks, nil
}

func (r *weekRepository) GetByID(ctx context.Context, id uint) (models.Week, error) {
	var week models.Week
	if err := r.db.WithContext(ctx).First(&week, id).Error; err != nil {
		return models.Week{}, err
	}

	return week, nil
}

func (r *weekRepository) Create(ctx context.Context, week *models.Week) error {
	return r.db.WithContext(ctx).Create(week).Error
}

func (r *weekRepository) Update(ctx context.Context, week *models.Week) error {
	return r.db.WithContext(ctx).Save(week).Error
}

func (r *weekRepository) UpsertBatch(ctx context.Context, items []models.Week) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "start_date", "end_date", "is_active", "updated_at"}),
	}).Create(&items)

	return result.RowsAffected, result.Error
}
