package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casecamp/casecamp-api/internal/models"
)

// DefaultCaseBatchSize caps the number of ids resolved per round trip
// when the analytics rebuild looks up case metadata.
const DefaultCaseBatchSize = 10

// CaseRepository defines data operations for cases.
type CaseRepository interface {
	List(ctx context.Context, weekID *uint) ([]models.Case, error)
	GetByID(ctx context.Context, id uint) (models.Case, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.Case, error)
	Create(ctx context.Context, c *models.Case) error
	UpsertBatch(ctx context.Context, items []models.Case) (int64, error)
}

type caseRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewCaseRepository instantiates the repository. batchSize bounds the
// fan-out of GetByIDs; values below one fall back to the default.
func NewCaseRepository(db *gorm.DB, batchSize int) CaseRepository {
	if batchSize <= 0 {
		batchSize = DefaultCaseBatchSize
	}

	return &caseRepository{db: db, batchSize: batchSize}
}

func (r *caseRepository) List(ctx context.Context, weekID *uint) ([]models.Case, error) {
	query := r.db.WithContext(ctx).Model(&models.Case{}).Preload("Week")
	if weekID != nil {
		query = query.Where("week_id = ?", *weekID)
	}

	var cases []models.Case
	if err := query.Order("created_at DESC").Find(&cases).Error; err != nil {
		return nil, err
	}

	return cases, nil
}

func (r *caseRepository) GetByID(ctx context.Context, id uint) (models.Case, error) {
	var c models.Case
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return models.Case{}, err
	}

	return c, nil
}

// GetByIDs resolves the given ids in chunks of at most batchSize per
// query and returns an id-keyed map. Ids that do not resolve are simply
// absent from the result; callers decide how to treat the gap.
func (r *caseRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]models.Case, error) {
	resolved := make(map[uint]models.Case, len(ids))

	for start := 0; start < len(ids); start += r.batchSize {
		end := start + r.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		var chunk []models.Case
		if err := r.db.WithContext(ctx).Where("id IN ?", ids[start:end]).Find(&chunk).Error; err != nil {
			return nil, err
		}

		for _, c := range chunk {
			resolved[c.ID] = c
		}
	}

	return resolved, nil
}

func (r *caseRepository) Create(ctx context.Context, c *models.Case) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *caseRepository) UpsertBatch(ctx context.Context, items []models.Case) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"week_id", "title", "speciality", "level", "updated_at"}),
	}).Create(&items)

	return result.RowsAffected, result.Error
}
