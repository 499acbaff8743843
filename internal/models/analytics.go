package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalyticsRollup is a per-student performance summary. Unlike the
// leaderboard projections it is fully recomputed from the student's
// scored-submission history on every rebuild, never delta-applied.
type AnalyticsRollup struct {
	ID                  uint `gorm:"primaryKey" json:"id"`
	StudentID           uint `gorm:"not null;uniqueIndex" json:"student_id"`
	TotalCompletedCases int  `gorm:"not null;default:0" json:"total_completed_cases"`
	TotalScore          int  `gorm:"not null;default:0" json:"total_score"`
	// WeeklyPerformance is a JSON array of {week_id, points}.
	WeeklyPerformance datatypes.JSON `json:"weekly_performance"`
	// SpecialtyPerformance is a JSON array of {specialty, average}.
	SpecialtyPerformance datatypes.JSON `json:"specialty_performance"`
	// ActivityHeatmap maps ISO-8601 UTC dates to submission counts.
	ActivityHeatmap datatypes.JSON `json:"activity_heatmap"`
	LastUpdated     time.Time      `gorm:"not null" json:"last_updated"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// WeeklyPerformancePoint is one element of the weekly performance array.
type WeeklyPerformancePoint struct {
	WeekID uint `json:"week_id"`
	Points int  `json:"points"`
}

// SpecialtyPerformancePoint is one element of the specialty performance array.
type SpecialtyPerformancePoint struct {
	Specialty string  `json:"specialty"`
	Average   float64 `json:"average"`
}
