package models

import "time"

// Case is a weekly assignment unit students submit work against.
// Cases are treated as immutable once scored submissions reference
// them; case edits never re-trigger scoring.
type Case struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WeekID     uint      `gorm:"not null;index" json:"week_id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Speciality string    `gorm:"size:128;not null" json:"speciality"`
	Level      string    `gorm:"size:64" json:"level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Week       Week      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"week"`
}
