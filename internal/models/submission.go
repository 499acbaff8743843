package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one student's work on one case. It is the system of
// record: every other points-bearing row is a projection derived from
// it by the scoring engine.
type Submission struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	CaseID    uint     `gorm:"not null;index" json:"case_id"`
	StudentID uint     `gorm:"not null;index" json:"student_id"`
	Status    string   `gorm:"size:32;not null" json:"status"`
	// TeacherScore is the raw score assigned during review, nil until
	// a teacher has scored the submission.
	TeacherScore *float64 `json:"teacher_score"`
	// TotalPointsAwarded always converges to the calculator's output
	// for the submission's current state. Written only by the delta
	// propagation transaction.
	TotalPointsAwarded int       `gorm:"not null;default:0" json:"total_points_awarded"`
	SubmittedAt        time.Time `gorm:"not null" json:"submitted_at"`
	Feedback           string    `gorm:"type:text" json:"feedback"`

	// Fields below are produced by the external media/AI pipelines.
	// The scoring engine never reads or reacts to them.
	VideoURL          string         `gorm:"size:512" json:"video_url"`
	TranscodingStatus string         `gorm:"size:32" json:"transcoding_status"`
	AIStatus          string         `gorm:"size:32" json:"ai_status"`
	AutoFeedback      datatypes.JSON `json:"auto_feedback"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Case      Case      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"case"`
	Student   Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

const (
	// SubmissionStatusSubmitted indicates the work has been handed in
	// but not yet reviewed by a teacher.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusScored indicates a teacher has assigned a score.
	SubmissionStatusScored = "scored"
)

// IsScored reports whether the submission carries a teacher review.
func (s Submission) IsScored() bool {
	return s.Status == SubmissionStatusScored
}
