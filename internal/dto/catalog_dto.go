package dto

import (
	"time"

	"github.com/casecamp/casecamp-api/internal/models"
)

// WeekCreateRequest captures the creation of a scoring week.
type WeekCreateRequest struct {
	Title     string    `json:"title" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// CaseCreateRequest captures the creation of a case within a week.
type CaseCreateRequest struct {
	WeekID     uint   `json:"week_id" validate:"required"`
	Title      string `json:"title" validate:"required"`
	Speciality string `json:"speciality" validate:"required"`
	Level      string `json:"level"`
}

// WeekResponse is the API view of a week.
type WeekResponse struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
}

// CaseResponse is the API view of a case.
type CaseResponse struct {
	ID         uint   `json:"id"`
	WeekID     uint   `json:"week_id"`
	Title      string `json:"title"`
	Speciality string `json:"speciality"`
	Level      string `json:"level,omitempty"`
}

// NewWeekResponse maps a week model to its API view.
func NewWeekResponse(week models.Week) WeekResponse {
	return WeekResponse{
		ID:        week.ID,
		Title:     week.Title,
		StartDate: week.StartDate,
		EndDate:   week.EndDate,
		IsActive:  week.IsActive,
	}
}

// NewWeekResponseSlice maps a slice of weeks.
func NewWeekResponseSlice(weeks []models.Week) []WeekResponse {
	responses := make([]WeekResponse, 0, len(weeks))
	for _, week := range weeks {
		responses = append(responses, NewWeekResponse(week))
	}

	return responses
}

// NewCaseResponse maps a case model to its API view.
func NewCaseResponse(c models.Case) CaseResponse {
	return CaseResponse{
		ID:         c.ID,
		WeekID:     c.WeekID,
		Title:      c.Title,
		Speciality: c.Speciality,
		Level:      c.Level,
	}
}

// NewCaseResponseSlice maps a slice of cases.
func NewCaseResponseSlice(cases []models.Case) []CaseResponse {
	responses := make([]CaseResponse, 0, len(cases))
	for _, c := range cases {
		responses = append(responses, NewCaseResponse(c))
	}

	return responses
}
