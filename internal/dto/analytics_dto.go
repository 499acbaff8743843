package dto

import (
	"encoding/json"
	"time"

	"github.com/casecamp/casecamp-api/internal/models"
)

// StudentAnalyticsResponse is the API view of a student's rollup.
type StudentAnalyticsResponse struct {
	StudentID            uint                               `json:"student_id"`
	TotalCompletedCases  int                                `json:"total_completed_cases"`
	TotalScore           int                                `json:"total_score"`
	WeeklyPerformance    []models.WeeklyPerformancePoint    `json:"weekly_performance"`
	SpecialtyPerformance []models.SpecialtyPerformancePoint `json:"specialty_performance"`
	ActivityHeatmap      map[string]int                     `json:"activity_heatmap"`
	LastUpdated          time.Time                          `json:"last_updated"`
}

// NewStudentAnalyticsResponse decodes the stored rollup into its API
// view. Corrupt stored JSON yields empty collections rather than an
// error; the next rebuild overwrites the document anyway.
func NewStudentAnalyticsResponse(rollup models.AnalyticsRollup) StudentAnalyticsResponse {
	response := StudentAnalyticsResponse{
		StudentID:            rollup.StudentID,
		TotalCompletedCases:  rollup.TotalCompletedCases,
		TotalScore:           rollup.TotalScore,
		WeeklyPerformance:    []models.WeeklyPerformancePoint{},
		SpecialtyPerformance: []models.SpecialtyPerformancePoint{},
		ActivityHeatmap:      map[string]int{},
		LastUpdated:          rollup.LastUpdated,
	}

	if len(rollup.WeeklyPerformance) > 0 {
		_ = json.Unmarshal(rollup.WeeklyPerformance, &response.WeeklyPerformance)
	}
	if len(rollup.SpecialtyPerformance) > 0 {
		_ = json.Unmarshal(rollup.SpecialtyPerformance, &response.SpecialtyPerformance)
	}
	if len(rollup.ActivityHeatmap) > 0 {
		_ = json.Unmarshal(rollup.ActivityHeatmap, &response.ActivityHeatmap)
	}

	return response
}
