package models

import "time"

// Student represents a dental student participating in weekly case reviews.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	// TotalPoints is the running sum of totalPointsAwarded across the
	// student's submissions. It is mutated only inside the delta
	// propagation transaction, never recomputed from scratch.
	TotalPoints int       `gorm:"not null;default:0" json:"total_points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
