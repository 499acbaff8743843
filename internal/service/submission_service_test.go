package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type publishedChange struct {
	before *trigger.SubmissionSnapshot
	after  *trigger.SubmissionSnapshot
}

// stubPublisher records events instead of pushing them to the fabric.
type stubPublisher struct {
	mu          sync.Mutex
	submissions []publishedChange
	weeks       []trigger.WeekChangeEvent
}

func (p *stubPublisher) PublishSubmissionChange(_ context.Context, before, after *trigger.SubmissionSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submissions = append(p.submissions, publishedChange{before: before, after: after})
	return nil
}

func (p *stubPublisher) PublishWeekChange(_ context.Context, event trigger.WeekChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.weeks = append(p.weeks, event)
	return nil
}

func setupSubmissionService(t *testing.T) (*gorm.DB, SubmissionService, *stubPublisher) {
	t.Helper()

	dsn := fmt.Sprintf("file:submission_svc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Week{}, &models.Case{}, &models.Submission{}))

	publisher := &stubPublisher{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewCaseRepository(db, 10),
		repository.NewStudentRepository(db),
		publisher,
		validate,
		testLogger(),
	)

	return db, svc, publisher
}

func seedCatalog(t *testing.T, db *gorm.DB) (models.Case, models.Student) {
	t.Helper()

	week := models.Week{Title: "Week 1", StartDate: time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&week).Error)
	caseRecord := models.Case{WeekID: week.ID, Title: "Composite filling", Speciality: "Restorative"}
	require.NoError(t, db.Create(&caseRecord).Error)
	student := models.Student{Name: "Salma", Email: fmt.Sprintf("salma_%d@example.com", time.Now().UnixNano())}
	require.NoError(t, db.Create(&student).Error)

	return caseRecord, student
}

func TestSubmissionServiceCreate(t *testing.T) {
	db, svc, publisher := setupSubmissionService(t)
	caseRecord, student := seedCatalog(t, db)

	response, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: student.ID})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, response.Status)
	require.Nil(t, response.TeacherScore)

	require.Len(t, publisher.submissions, 1)
	require.Nil(t, publisher.submissions[0].before)
	require.Equal(t, response.ID, publisher.submissions[0].after.ID)
}

func TestSubmissionServiceCreateRejectsMissingRefs(t *testing.T) {
	db, svc, _ := setupSubmissionService(t)
	caseRecord, student := seedCatalog(t, db)

	_, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: 999, StudentID: student.ID})
	require.ErrorIs(t, err, ErrCaseNotFound)

	_, err = svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: 999})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestSubmissionServiceCreateRejectsDuplicate(t *testing.T) {
	db, svc, _ := setupSubmissionService(t)
	caseRecord, student := seedCatalog(t, db)

	_, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: student.ID})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: student.ID})
	require.ErrorIs(t, err, ErrDuplicateSubmission)
}

func TestSubmissionServiceScore(t *testing.T) {
	db, svc, publisher := setupSubmissionService(t)
	caseRecord, student := seedCatalog(t, db)

	created, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: student.ID})
	require.NoError(t, err)

	scored, err := svc.Score(context.Background(), created.ID, dto.SubmissionScoreRequest{Score: 8, Feedback: "Solid margins"})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusScored, scored.Status)
	require.NotNil(t, scored.TeacherScore)
	require.Equal(t, 8.0, *scored.TeacherScore)
	require.Equal(t, "Solid margins", scored.Feedback)

	require.Len(t, publisher.submissions, 2)
	change := publisher.submissions[1]
	require.Equal(t, models.SubmissionStatusSubmitted, change.before.Status)
	require.Equal(t, models.SubmissionStatusScored, change.after.Status)
}

func TestSubmissionServiceScoreIdempotent(t *testing.T) {
	db, svc, publisher := setupSubmissionService(t)
	caseRecord, student := seedCatalog(t, db)

	created, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: student.ID})
	require.NoError(t, err)

	_, err = svc.Score(context.Background(), created.ID, dto.SubmissionScoreRequest{Score: 8, Feedback: "Good"})
	require.NoError(t, err)
	eventsAfterFirst := len(publisher.submissions)

	// Replaying the identical score must not publish another change.
	_, err = svc.Score(context.Background(), created.ID, dto.SubmissionScoreRequest{Score: 8, Feedback: "Good"})
	require.NoError(t, err)
	require.Len(t, publisher.submissions, eventsAfterFirst)

	// A genuine revision does.
	_, err = svc.Score(context.Background(), created.ID, dto.SubmissionScoreRequest{Score: 9, Feedback: "Good"})
	require.NoError(t, err)
	require.Len(t, publisher.submissions, eventsAfterFirst+1)
}

func TestSubmissionServiceScoreSanitizesFeedback(t *testing.T) {
	db, svc, _ := setupSubmissionService(t)
	caseRecord, student := seedCatalog(t, db)

	created, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: student.ID})
	require.NoError(t, err)

	scored, err := svc.Score(context.Background(), created.ID, dto.SubmissionScoreRequest{
		Score:    7,
		Feedback: "<script>alert('x')</script>Keep the access cavity smaller",
	})
	require.NoError(t, err)
	require.Equal(t, "Keep the access cavity smaller", scored.Feedback)
}

func TestSubmissionServiceScoreValidation(t *testing.T) {
	db, svc, _ := setupSubmissionService(t)
	caseRecord, student := seedCatalog(t, db)

	created, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{CaseID: caseRecord.ID, StudentID: student.ID})
	require.NoError(t, err)

	_, err = svc.Score(context.Background(), created.ID, dto.SubmissionScoreRequest{Score: 101})
	require.Error(t, err)

	_, err = svc.Score(context.Background(), 404, dto.SubmissionScoreRequest{Score: 5})
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
