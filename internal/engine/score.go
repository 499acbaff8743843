package engine

import (
	"math"

	"github.com/casecamp/casecamp-api/internal/models"
)

// Point model constants. The model is purely additive; there is no
// penalty term, so computed totals are always non-negative.
const (
	// PointsBase is awarded for any submission.
	PointsBase = 10
	// PointsEarly24h is the bonus for submitting within 24 hours of
	// the week's start.
	PointsEarly24h = 10
	// PointsEarly48h is the bonus for submitting within 48 hours.
	PointsEarly48h = 5
	// TeacherScoreMultiplier scales the teacher's raw score into bonus
	// points once a submission is scored.
	TeacherScoreMultiplier = 0.5
)

// ComputeScore derives the canonical point total for a submission
// against its week. Pure: no I/O, no side effects, deterministic for a
// given (status, teacherScore, submittedAt, week.StartDate) tuple, which
// is what makes transactional re-reads safe to recompute against.
//
// Boundary hours are inclusive toward the more generous tier: exactly
// 24h still earns the 24h bonus, exactly 48h the 48h bonus.
//
// The teacher bonus rounds half away from zero. Scores are non-negative
// in this model, so this matches the upstream scoring behaviour at .5
// midpoints and keeps the conservation invariant exact.
func ComputeScore(sub models.Submission, week models.Week) int {
	points := PointsBase

	diffHours := sub.SubmittedAt.Sub(week.StartDate).Hours()
	switch {
	case diffHours <= 24:
		points += PointsEarly24h
	case diffHours <= 48:
		points += PointsEarly48h
	}

	if sub.Status == models.SubmissionStatusScored && sub.TeacherScore != nil {
		points += int(math.Round(*sub.TeacherScore * TeacherScoreMultiplier))
	}

	return points
}
