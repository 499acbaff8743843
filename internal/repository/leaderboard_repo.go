package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/models"
)

// LeaderboardRepository reads the leaderboard projection rows. Writes
// happen exclusively inside the delta propagation transaction.
type LeaderboardRepository interface {
	ListGlobal(ctx context.Context, limit int) ([]models.GlobalLeaderboardEntry, error)
	ListWeekly(ctx context.Context, weekID uint, limit int) ([]models.WeeklyLeaderboardEntry, error)
	GetGlobalByStudent(ctx context.Context, studentID uint) (models.GlobalLeaderboardEntry, error)
	GetWeeklyByStudent(ctx context.Context, weekID, studentID uint) (models.WeeklyLeaderboardEntry, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

// NewLeaderboardRepository instantiates the repository.
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) ListGlobal(ctx context.Context, limit int) ([]models.GlobalLeaderboardEntry, error) {
	var entries []models.GlobalLeaderboardEntry
	query := r.db.WithContext(ctx).Order("total_points DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *leaderboardRepository) ListWeekly(ctx context.Context, weekID uint, limit int) ([]models.WeeklyLeaderboardEntry, error) {
	var entries []models.WeeklyLeaderboardEntry
	query := r.db.WithContext(ctx).Where("week_id = ?", weekID).Order("total_points DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *leaderboardRepository) GetGlobalByStudent(ctx context.Context, studentID uint) (models.GlobalLeaderboardEntry, error) {
	var entry models.GlobalLeaderboardEntry
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&entry).Error; err != nil {
		return models.GlobalLeaderboardEntry{}, err
	}

	return entry, nil
}

func (r *leaderboardRepository) GetWeeklyByStudent(ctx context.Context, weekID, studentID uint) (models.WeeklyLeaderboardEntry, error) {
	var entry models.WeeklyLeaderboardEntry
	if err := r.db.WithContext(ctx).
		Where("week_id = ?", weekID).
		Where("student_id = ?", studentID).
		First(&entry).Error; err != nil {
		return models.WeeklyLeaderboardEntry{}, err
	}

	return entry, nil
}
