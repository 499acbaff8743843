package trigger

import (
	"time"

	"github.com/casecamp/casecamp-api/internal/models"
)

// SubmissionSnapshot is the engine's view of one submission at a point
// in time. Snapshots are value copies: handlers never observe writes
// performed after the event was published.
type SubmissionSnapshot struct {
	ID                 uint      `json:"id"`
	CaseID             uint      `json:"case_id"`
	StudentID          uint      `json:"student_id"`
	Status             string    `json:"status"`
	TeacherScore       *float64  `json:"teacher_score"`
	TotalPointsAwarded int       `json:"total_points_awarded"`
	SubmittedAt        time.Time `json:"submitted_at"`
}

// SubmissionChangeEvent carries the before/after snapshots delivered on
// every submission write. Before is nil on create, After is nil on
// delete. Delivery is at-least-once with no cross-document ordering, so
// every consumer must tolerate duplicates and reordering.
type SubmissionChangeEvent struct {
	EventID string              `json:"event_id"`
	Before  *SubmissionSnapshot `json:"before"`
	After   *SubmissionSnapshot `json:"after"`
	SentAt  time.Time           `json:"sent_at"`
}

// WeekChangeEvent carries before/after week snapshots. Only the
// notification consumer cares about these (activation announcements).
type WeekChangeEvent struct {
	EventID string       `json:"event_id"`
	Before  *models.Week `json:"before"`
	After   *models.Week `json:"after"`
	SentAt  time.Time    `json:"sent_at"`
}

// Snapshot converts a stored submission into the wire snapshot form.
func Snapshot(submission models.Submission) *SubmissionSnapshot {
	var score *float64
	if submission.TeacherScore != nil {
		value := *submission.TeacherScore
		score = &value
	}

	return &SubmissionSnapshot{
		ID:                 submission.ID,
		CaseID:             submission.CaseID,
		StudentID:          submission.StudentID,
		Status:             submission.Status,
		TeacherScore:       score,
		TotalPointsAwarded: submission.TotalPointsAwarded,
		SubmittedAt:        submission.SubmittedAt,
	}
}
