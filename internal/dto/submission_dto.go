package dto

import (
	"encoding/json"
	"time"

	"github.com/casecamp/casecamp-api/internal/models"
)

// SubmissionCreateRequest captures a student handing in work for a case.
type SubmissionCreateRequest struct {
	CaseID    uint `json:"case_id" validate:"required"`
	StudentID uint `json:"student_id" validate:"required"`
}

// SubmissionScoreRequest captures a teacher scoring a submission.
type SubmissionScoreRequest struct {
	Score    float64 `json:"score" validate:"gte=0,lte=100"`
	Feedback string  `json:"feedback"`
}

// SubmissionMediaUpdateRequest is the callback payload written by the
// external transcoding and AI pipelines. None of these fields feed back
// into scoring.
type SubmissionMediaUpdateRequest struct {
	TranscodingStatus string          `json:"transcoding_status"`
	AIStatus          string          `json:"ai_status"`
	AutoFeedback      json.RawMessage `json:"auto_feedback"`
}

// SubmissionFilter narrows submission list queries.
type SubmissionFilter struct {
	CaseID    *uint
	StudentID *uint
	Status    *string
}

// SubmissionResponse is the API view of a submission.
type SubmissionResponse struct {
	ID                 uint            `json:"id"`
	CaseID             uint            `json:"case_id"`
	StudentID          uint            `json:"student_id"`
	Status             string          `json:"status"`
	TeacherScore       *float64        `json:"teacher_score"`
	TotalPointsAwarded int             `json:"total_points_awarded"`
	SubmittedAt        time.Time       `json:"submitted_at"`
	Feedback           string          `json:"feedback,omitempty"`
	VideoURL           string          `json:"video_url,omitempty"`
	TranscodingStatus  string          `json:"transcoding_status,omitempty"`
	AIStatus           string          `json:"ai_status,omitempty"`
	AutoFeedback       json.RawMessage `json:"auto_feedback,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewSubmissionResponse maps a submission model to its API view.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:                 submission.ID,
		CaseID:             submission.CaseID,
		StudentID:          submission.StudentID,
		Status:             submission.Status,
		TeacherScore:       submission.TeacherScore,
		TotalPointsAwarded: submission.TotalPointsAwarded,
		SubmittedAt:        submission.SubmittedAt,
		Feedback:           submission.Feedback,
		VideoURL:           submission.VideoURL,
		TranscodingStatus:  submission.TranscodingStatus,
		AIStatus:           submission.AIStatus,
		AutoFeedback:       json.RawMessage(submission.AutoFeedback),
		CreatedAt:          submission.CreatedAt,
		UpdatedAt:          submission.UpdatedAt,
	}
}

// NewSubmissionResponseSlice maps a slice of submissions.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
