package dto

import (
	"time"

	"github.com/casecamp/casecamp-api/internal/models"
)

// LeaderboardEntry is one row of a leaderboard view. Rank is whatever
// placeholder the projection currently stores; ranking is assigned by a
// separate process.
type LeaderboardEntry struct {
	StudentID   uint `json:"student_id"`
	TotalPoints int  `json:"total_points"`
	Rank        int  `json:"rank"`
}

// GlobalLeaderboardResponse is the cached all-time leaderboard view.
type GlobalLeaderboardResponse struct {
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
	CacheHit    bool               `json:"cache_hit"`
}

// WeeklyLeaderboardResponse is the cached per-week leaderboard view.
type WeeklyLeaderboardResponse struct {
	WeekID      uint               `json:"week_id"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
	CacheHit    bool               `json:"cache_hit"`
}

// NewGlobalLeaderboardEntries maps projection rows to API entries.
func NewGlobalLeaderboardEntries(entries []models.GlobalLeaderboardEntry) []LeaderboardEntry {
	result := make([]LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, LeaderboardEntry{
			StudentID:   entry.StudentID,
			TotalPoints: entry.TotalPoints,
			Rank:        entry.Rank,
		})
	}

	return result
}

// NewWeeklyLeaderboardEntries maps weekly projection rows to API entries.
func NewWeeklyLeaderboardEntries(entries []models.WeeklyLeaderboardEntry) []LeaderboardEntry {
	result := make([]LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, LeaderboardEntry{
			StudentID:   entry.StudentID,
			TotalPoints: entry.TotalPoints,
			Rank:        entry.Rank,
		})
	}

	return result
}
