package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

func setupAggregator(t *testing.T) (*gorm.DB, *Aggregator, repository.AnalyticsRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:analytics_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Week{},
		&models.Case{},
		&models.Submission{},
		&models.AnalyticsRollup{},
	))

	submissions := repository.NewSubmissionRepository(db)
	cases := repository.NewCaseRepository(db, 2)
	rollups := repository.NewAnalyticsRepository(db)

	aggregator := NewAggregator(submissions, cases, rollups, zerolog.Nop())
	aggregator.now = func() time.Time { return time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC) }

	return db, aggregator, rollups
}

func scoredSubmission(t *testing.T, db *gorm.DB, caseID, studentID uint, points int, submittedAt time.Time) models.Submission {
	t.Helper()

	score := float64(points)
	sub := models.Submission{
		CaseID:             caseID,
		StudentID:          studentID,
		Status:             models.SubmissionStatusScored,
		TeacherScore:       &score,
		TotalPointsAwarded: points,
		SubmittedAt:        submittedAt,
	}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

func scoredEvent(sub models.Submission) trigger.SubmissionChangeEvent {
	return trigger.SubmissionChangeEvent{
		EventID: fmt.Sprintf("evt-%d", sub.ID),
		After:   trigger.Snapshot(sub),
		SentAt:  time.Now().UTC(),
	}
}

func TestAggregatorRebuildsRollup(t *testing.T) {
	db, aggregator, rollups := setupAggregator(t)

	week1 := models.Week{Title: "Week 1", StartDate: time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)}
	week2 := models.Week{Title: "Week 2", StartDate: time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.March, 18, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&week1).Error)
	require.NoError(t, db.Create(&week2).Error)

	endoCase := models.Case{WeekID: week1.ID, Title: "Root canal", Speciality: "Endodontics"}
	perioCase := models.Case{WeekID: week1.ID, Title: "Scaling", Speciality: "Periodontics"}
	endoCase2 := models.Case{WeekID: week2.ID, Title: "Retreatment", Speciality: "Endodontics"}
	require.NoError(t, db.Create(&endoCase).Error)
	require.NoError(t, db.Create(&perioCase).Error)
	require.NoError(t, db.Create(&endoCase2).Error)

	day1 := time.Date(2024, time.March, 4, 18, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)
	scoredSubmission(t, db, endoCase.ID, 1, 24, day1)
	scoredSubmission(t, db, perioCase.ID, 1, 18, day1)
	last := scoredSubmission(t, db, endoCase2.ID, 1, 30, day2)

	require.NoError(t, aggregator.HandleSubmissionChange(context.Background(), scoredEvent(last)))

	rollup, err := rollups.GetByStudent(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 3, rollup.TotalCompletedCases)
	require.Equal(t, 72, rollup.TotalScore)
	require.Equal(t, time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC), rollup.LastUpdated.UTC())

	var weekly []models.WeeklyPerformancePoint
	require.NoError(t, json.Unmarshal(rollup.WeeklyPerformance, &weekly))
	require.Equal(t, []models.WeeklyPerformancePoint{
		{WeekID: week1.ID, Points: 42},
		{WeekID: week2.ID, Points: 30},
	}, weekly)

	var specialties []models.SpecialtyPerformancePoint
	require.NoError(t, json.Unmarshal(rollup.SpecialtyPerformance, &specialties))
	require.Equal(t, []models.SpecialtyPerformancePoint{
		{Specialty: "Endodontics", Average: 27},
		{Specialty: "Periodontics", Average: 18},
	}, specialties)

	var heatmap map[string]int
	require.NoError(t, json.Unmarshal(rollup.ActivityHeatmap, &heatmap))
	require.Equal(t, map[string]int{"2024-03-04": 2, "2024-03-12": 1}, heatmap)
}

func TestAggregatorDanglingCaseCountsOnlyInTotals(t *testing.T) {
	db, aggregator, rollups := setupAggregator(t)

	week := models.Week{Title: "Week 1", StartDate: time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&week).Error)
	caseRecord := models.Case{WeekID: week.ID, Title: "Extraction", Speciality: "Oral Surgery"}
	require.NoError(t, db.Create(&caseRecord).Error)

	submitted := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	good := scoredSubmission(t, db, caseRecord.ID, 2, 20, submitted)
	scoredSubmission(t, db, 9999, 2, 15, submitted)

	require.NoError(t, aggregator.HandleSubmissionChange(context.Background(), scoredEvent(good)))

	rollup, err := rollups.GetByStudent(context.Background(), 2)
	require.NoError(t, err)
	// The dangling submission counts toward completed cases but its
	// points never reach the buckets.
	require.Equal(t, 2, rollup.TotalCompletedCases)
	require.Equal(t, 20, rollup.TotalScore)

	var heatmap map[string]int
	require.NoError(t, json.Unmarshal(rollup.ActivityHeatmap, &heatmap))
	require.Equal(t, map[string]int{"2024-03-05": 1}, heatmap)
}

func TestAggregatorDefaultsEmptySpecialty(t *testing.T) {
	db, aggregator, rollups := setupAggregator(t)

	week := models.Week{Title: "Week 1", StartDate: time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&week).Error)
	caseRecord := models.Case{WeekID: week.ID, Title: "Checkup", Speciality: ""}
	require.NoError(t, db.Create(&caseRecord).Error)

	sub := scoredSubmission(t, db, caseRecord.ID, 3, 12, time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC))
	require.NoError(t, aggregator.HandleSubmissionChange(context.Background(), scoredEvent(sub)))

	rollup, err := rollups.GetByStudent(context.Background(), 3)
	require.NoError(t, err)

	var specialties []models.SpecialtyPerformancePoint
	require.NoError(t, json.Unmarshal(rollup.SpecialtyPerformance, &specialties))
	require.Equal(t, []models.SpecialtyPerformancePoint{{Specialty: "General", Average: 12}}, specialties)
}

func TestAggregatorSkipsIrrelevantChanges(t *testing.T) {
	_, aggregator, rollups := setupAggregator(t)

	event := trigger.SubmissionChangeEvent{
		EventID: "evt-unscored",
		After:   &trigger.SubmissionSnapshot{ID: 1, StudentID: 4, Status: models.SubmissionStatusSubmitted},
		SentAt:  time.Now().UTC(),
	}
	require.NoError(t, aggregator.HandleSubmissionChange(context.Background(), event))

	_, err := rollups.GetByStudent(context.Background(), 4)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAggregatorRerunIsIdempotent(t *testing.T) {
	db, aggregator, rollups := setupAggregator(t)

	week := models.Week{Title: "Week 1", StartDate: time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&week).Error)
	caseRecord := models.Case{WeekID: week.ID, Title: "Filling", Speciality: "Restorative"}
	require.NoError(t, db.Create(&caseRecord).Error)

	sub := scoredSubmission(t, db, caseRecord.ID, 5, 25, time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC))

	require.NoError(t, aggregator.HandleSubmissionChange(context.Background(), scoredEvent(sub)))
	require.NoError(t, aggregator.HandleSubmissionChange(context.Background(), scoredEvent(sub)))

	rollup, err := rollups.GetByStudent(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 1, rollup.TotalCompletedCases)
	require.Equal(t, 25, rollup.TotalScore)

	var count int64
	require.NoError(t, db.Model(&models.AnalyticsRollup{}).Where("student_id = ?", 5).Count(&count).Error)
	require.Equal(t, int64(1), count)
}
