package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/config"
	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/engine"
	"github.com/casecamp/casecamp-api/internal/handler"
	"github.com/casecamp/casecamp-api/internal/middleware"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/router"
	"github.com/casecamp/casecamp-api/internal/service"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

// loopbackFabric delivers change events synchronously to the same
// consumers the NATS subjects would fan out to in production.
type loopbackFabric struct {
	submissionHandlers []trigger.SubmissionHandler
	weekHandlers       []trigger.WeekHandler
}

func (f *loopbackFabric) PublishSubmissionChange(ctx context.Context, before, after *trigger.SubmissionSnapshot) error {
	event := trigger.SubmissionChangeEvent{
		EventID: fmt.Sprintf("evt-%d", time.Now().UnixNano()),
		Before:  before,
		After:   after,
		SentAt:  time.Now().UTC(),
	}
	for _, h := range f.submissionHandlers {
		if err := h.HandleSubmissionChange(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (f *loopbackFabric) PublishWeekChange(ctx context.Context, event trigger.WeekChangeEvent) error {
	for _, h := range f.weekHandlers {
		if err := h.HandleWeekChange(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupScoringApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:scoring_e2e_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Week{},
		&models.Case{},
		&models.Submission{},
		&models.GlobalLeaderboardEntry{},
		&models.WeeklyLeaderboardEntry{},
		&models.AnalyticsRollup{},
		&models.Notification{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	weekRepo := repository.NewWeekRepository(db)
	caseRepo := repository.NewCaseRepository(db, 10)
	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	fabric := &loopbackFabric{}

	propagator := engine.NewPropagator(db, fabric, 3, logger)
	aggregator := engine.NewAggregator(submissionRepo, caseRepo, analyticsRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, studentRepo, nil, logger)

	fabric.submissionHandlers = []trigger.SubmissionHandler{propagator, aggregator, notificationService}
	fabric.weekHandlers = []trigger.WeekHandler{notificationService}

	submissionService := service.NewSubmissionService(submissionRepo, caseRepo, studentRepo, fabric, validate, logger)
	mediaService := service.NewMediaService(submissionRepo, nil, fabric, 5, logger)
	catalogService := service.NewCatalogService(weekRepo, caseRepo, fabric, validate, logger)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, nil, time.Minute, logger)
	analyticsQueryService := service.NewAnalyticsQueryService(analyticsRepo, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, mediaService, logger),
		CatalogHandler:      handler.NewCatalogHandler(catalogService, logger),
		LeaderboardHandler:  handler.NewLeaderboardHandler(leaderboardService, logger),
		AnalyticsHandler:    handler.NewAnalyticsHandler(analyticsQueryService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, time.Second),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			return c.Next()
		},
	})

	return app, db
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) envelope {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	request := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	response, err := app.Test(request, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	var result envelope
	require.NoError(t, json.NewDecoder(response.Body).Decode(&result))
	require.True(t, result.Success)
	return result
}

func getJSON(t *testing.T, app *fiber.App, path string) envelope {
	t.Helper()

	request := httptest.NewRequest(fiber.MethodGet, path, nil)
	response, err := app.Test(request, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	var result envelope
	require.NoError(t, json.NewDecoder(response.Body).Decode(&result))
	return result
}

// The full lifecycle: a student submits ten hours into the week and
// earns the base plus the 24h bonus; the teacher scores an 8 and every
// derived record moves by the net difference only.
func TestScoringLifecycle(t *testing.T) {
	app, db := setupScoringApp(t)

	weekStart := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	week := models.Week{Title: "Week 1", StartDate: weekStart, EndDate: weekStart.Add(7 * 24 * time.Hour), IsActive: true}
	require.NoError(t, db.Create(&week).Error)
	caseRecord := models.Case{WeekID: week.ID, Title: "Molar root canal", Speciality: "Endodontics"}
	require.NoError(t, db.Create(&caseRecord).Error)
	student := models.Student{Name: "Amira", Email: "amira@example.com"}
	require.NoError(t, db.Create(&student).Error)

	created := postJSON(t, app, "/api/v2/submissions", dto.SubmissionCreateRequest{
		CaseID:    caseRecord.ID,
		StudentID: student.ID,
	})
	var submission dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(created.Data, &submission))

	// The HTTP path stamps the submission time as now; pin it inside
	// the bonus window and replay the change so the engine sees it.
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", submission.ID).
		Update("submitted_at", weekStart.Add(10*time.Hour)).Error)

	var pinned models.Submission
	require.NoError(t, db.First(&pinned, submission.ID).Error)
	propagateManually(t, db, pinned)

	var afterCreate models.Student
	require.NoError(t, db.First(&afterCreate, student.ID).Error)
	require.Equal(t, 20, afterCreate.TotalPoints)

	postJSON(t, app, fmt.Sprintf("/api/v2/submissions/%d/score", submission.ID), dto.SubmissionScoreRequest{
		Score:    8,
		Feedback: "Excellent canal shaping",
	})

	// Submission holds the recomputed total.
	var scored models.Submission
	require.NoError(t, db.First(&scored, submission.ID).Error)
	require.Equal(t, 24, scored.TotalPointsAwarded)

	// The student's running sum moved by the net +4.
	var afterScore models.Student
	require.NoError(t, db.First(&afterScore, student.ID).Error)
	require.Equal(t, 24, afterScore.TotalPoints)

	// Both leaderboard projections agree.
	global := getJSON(t, app, "/api/v2/leaderboards/global")
	var globalView dto.GlobalLeaderboardResponse
	require.NoError(t, json.Unmarshal(global.Data, &globalView))
	require.Len(t, globalView.Entries, 1)
	require.Equal(t, 24, globalView.Entries[0].TotalPoints)

	weekly := getJSON(t, app, fmt.Sprintf("/api/v2/leaderboards/weekly/%d", week.ID))
	var weeklyView dto.WeeklyLeaderboardResponse
	require.NoError(t, json.Unmarshal(weekly.Data, &weeklyView))
	require.Len(t, weeklyView.Entries, 1)
	require.Equal(t, 24, weeklyView.Entries[0].TotalPoints)

	// The analytics rollup was rebuilt from the scored history.
	analytics := getJSON(t, app, fmt.Sprintf("/api/v2/analytics/%d", student.ID))
	var analyticsView dto.StudentAnalyticsResponse
	require.NoError(t, json.Unmarshal(analytics.Data, &analyticsView))
	require.Equal(t, 1, analyticsView.TotalCompletedCases)
	require.Equal(t, 24, analyticsView.TotalScore)
	require.Equal(t, []models.WeeklyPerformancePoint{{WeekID: week.ID, Points: 24}}, analyticsView.WeeklyPerformance)

	// The student was notified exactly once about the review.
	var notifications []models.Notification
	require.NoError(t, db.Where("student_id = ?", student.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationTypeSubmissionScored, notifications[0].Type)
}

func TestScoringLifecycleIdempotentReplay(t *testing.T) {
	app, db := setupScoringApp(t)

	weekStart := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	week := models.Week{Title: "Week 1", StartDate: weekStart, EndDate: weekStart.Add(7 * 24 * time.Hour)}
	require.NoError(t, db.Create(&week).Error)
	caseRecord := models.Case{WeekID: week.ID, Title: "Crown prep", Speciality: "Prosthodontics"}
	require.NoError(t, db.Create(&caseRecord).Error)
	student := models.Student{Name: "Karim", Email: "karim@example.com"}
	require.NoError(t, db.Create(&student).Error)

	created := postJSON(t, app, "/api/v2/submissions", dto.SubmissionCreateRequest{
		CaseID:    caseRecord.ID,
		StudentID: student.ID,
	})
	var submission dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(created.Data, &submission))

	score := dto.SubmissionScoreRequest{Score: 6, Feedback: "Margins need work"}
	postJSON(t, app, fmt.Sprintf("/api/v2/submissions/%d/score", submission.ID), score)

	var afterFirst models.Student
	require.NoError(t, db.First(&afterFirst, student.ID).Error)

	// Scoring again with the same values changes nothing downstream.
	postJSON(t, app, fmt.Sprintf("/api/v2/submissions/%d/score", submission.ID), score)

	var afterReplay models.Student
	require.NoError(t, db.First(&afterReplay, student.ID).Error)
	require.Equal(t, afterFirst.TotalPoints, afterReplay.TotalPoints)

	var notificationCount int64
	require.NoError(t, db.Model(&models.Notification{}).Where("student_id = ?", student.ID).Count(&notificationCount).Error)
	require.Equal(t, int64(1), notificationCount)
}

// propagateManually re-delivers a submission's change event the way a
// fabric redelivery would.
func propagateManually(t *testing.T, db *gorm.DB, sub models.Submission) {
	t.Helper()

	logger := zerolog.New(io.Discard)
	propagator := engine.NewPropagator(db, nil, 3, logger)
	require.NoError(t, propagator.HandleSubmissionChange(context.Background(), trigger.SubmissionChangeEvent{
		EventID: fmt.Sprintf("replay-%d", sub.ID),
		After:   trigger.Snapshot(sub),
		SentAt:  time.Now().UTC(),
	}))
}
