package models

import "time"

// Notification is a message delivered to a student by the downstream
// notification consumer (scored submissions, week activations).
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	Type      string    `gorm:"size:64;not null" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// NotificationTypeSubmissionScored announces a teacher review.
	NotificationTypeSubmissionScored = "submission_scored"
	// NotificationTypeWeekActivated announces a newly opened week.
	NotificationTypeWeekActivated = "week_activated"
)
