package models

import "time"

// RankUnset is the placeholder rank stored on newly created leaderboard
// rows. Rank assignment is a separate process that reads these rows; the
// scoring engine only maintains the point totals.
const RankUnset = 0

// GlobalLeaderboardEntry mirrors a student's running total for the
// all-time ranking view. Created lazily on first delta, incremented in
// place afterwards.
type GlobalLeaderboardEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"not null;uniqueIndex" json:"student_id"`
	TotalPoints int       `gorm:"not null;default:0" json:"total_points"`
	Rank        int       `gorm:"not null;default:0" json:"rank"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WeeklyLeaderboardEntry holds a student's point total restricted to
// submissions whose case belongs to one week.
type WeeklyLeaderboardEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WeekID      uint      `gorm:"not null;uniqueIndex:idx_weekly_leaderboard_week_student" json:"week_id"`
	StudentID   uint      `gorm:"not null;uniqueIndex:idx_weekly_leaderboard_week_student" json:"student_id"`
	TotalPoints int       `gorm:"not null;default:0" json:"total_points"`
	Rank        int       `gorm:"not null;default:0" json:"rank"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
