package engine

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/observability"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

// Aggregator rebuilds a student's analytics rollup from their full
// scored-submission history. Rebuild-from-source rather than delta
// application is what makes this consumer trivially safe against
// duplicate and out-of-order delivery: a redundant run rewrites an
// identical document.
type Aggregator struct {
	submissions repository.SubmissionRepository
	cases       repository.CaseRepository
	rollups     repository.AnalyticsRepository
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAggregator constructs the analytics aggregator.
func NewAggregator(submissions repository.SubmissionRepository, cases repository.CaseRepository, rollups repository.AnalyticsRepository, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		submissions: submissions,
		cases:       cases,
		rollups:     rollups,
		logger:      logger.With().Str("component", "analytics_aggregator").Logger(),
		tracer:      otel.Tracer("github.com/casecamp/casecamp-api/internal/engine/analytics"),
		now:         time.Now,
	}
}

// HandleSubmissionChange is the analytics-path consumer for the trigger
// fabric.
func (a *Aggregator) HandleSubmissionChange(ctx context.Context, event trigger.SubmissionChangeEvent) error {
	if !AnalyticsRelevant(event.Before, event.After) {
		return nil
	}

	studentID := event.After.StudentID
	ctx, span := a.tracer.Start(ctx, "engine.rollup_rebuild")
	span.SetAttributes(attribute.Int64("student.id", int64(studentID)))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.RollupRebuildDuration().Observe(time.Since(start).Seconds())
	}()

	if err := a.rebuild(ctx, studentID); err != nil {
		observability.RollupFailures().Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "rollup_rebuild_failed")
		a.logger.Error().Err(err).Uint("student_id", studentID).Msg("analytics rollup rebuild failed")
		return err
	}

	a.logger.Debug().Uint("student_id", studentID).Msg("analytics rollup rebuilt")
	return nil
}

func (a *Aggregator) rebuild(ctx context.Context, studentID uint) error {
	scored, err := a.submissions.ListScoredByStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if len(scored) == 0 {
		return nil
	}

	caseIDs := distinctCaseIDs(scored)
	caseMap, err := a.cases.GetByIDs(ctx, caseIDs)
	if err != nil {
		return err
	}

	rollup, err := a.buildRollup(studentID, scored, caseMap)
	if err != nil {
		return err
	}

	return a.rollups.Upsert(ctx, &rollup)
}

type specialtyBucket struct {
	points int
	count  int
}

func (a *Aggregator) buildRollup(studentID uint, scored []models.Submission, caseMap map[uint]models.Case) (models.AnalyticsRollup, error) {
	totalScore := 0
	weeklyPoints := map[uint]int{}
	specialtyStats := map[string]*specialtyBucket{}
	heatmap := map[string]int{}

	for _, sub := range scored {
		caseRecord, resolved := caseMap[sub.CaseID]
		if !resolved {
			// A dangling case id drops the submission from every
			// bucket but not from the completed-cases count below.
			continue
		}

		points := sub.TotalPointsAwarded
		totalScore += points
		weeklyPoints[caseRecord.WeekID] += points

		specialty := caseRecord.Speciality
		if specialty == "" {
			specialty = "General"
		}
		bucket, ok := specialtyStats[specialty]
		if !ok {
			bucket = &specialtyBucket{}
			specialtyStats[specialty] = bucket
		}
		bucket.points += points
		bucket.count++

		if !sub.SubmittedAt.IsZero() {
			day := sub.SubmittedAt.UTC().Format("2006-01-02")
			heatmap[day]++
		}
	}

	weekly := make([]models.WeeklyPerformancePoint, 0, len(weeklyPoints))
	for weekID, points := range weeklyPoints {
		weekly = append(weekly, models.WeeklyPerformancePoint{WeekID: weekID, Points: points})
	}
	sort.Slice(weekly, func(i, j int) bool { return weekly[i].WeekID < weekly[j].WeekID })

	specialties := make([]models.SpecialtyPerformancePoint, 0, len(specialtyStats))
	for name, bucket := range specialtyStats {
		specialties = append(specialties, models.SpecialtyPerformancePoint{
			Specialty: name,
			Average:   float64(bucket.points) / float64(bucket.count),
		})
	}
	sort.Slice(specialties, func(i, j int) bool { return specialties[i].Specialty < specialties[j].Specialty })

	weeklyJSON, err := json.Marshal(weekly)
	if err != nil {
		return models.AnalyticsRollup{}, err
	}
	specialtyJSON, err := json.Marshal(specialties)
	if err != nil {
		return models.AnalyticsRollup{}, err
	}
	heatmapJSON, err := json.Marshal(heatmap)
	if err != nil {
		return models.AnalyticsRollup{}, err
	}

	return models.AnalyticsRollup{
		StudentID: studentID,
		// Counted from the raw scored set, so submissions with a
		// dangling case still count here despite being excluded from
		// the buckets. Matches the upstream behaviour; see DESIGN.md.
		TotalCompletedCases:  len(scored),
		TotalScore:           totalScore,
		WeeklyPerformance:    datatypes.JSON(weeklyJSON),
		SpecialtyPerformance: datatypes.JSON(specialtyJSON),
		ActivityHeatmap:      datatypes.JSON(heatmapJSON),
		LastUpdated:          a.now().UTC(),
	}, nil
}

func distinctCaseIDs(submissions []models.Submission) []uint {
	seen := make(map[uint]struct{}, len(submissions))
	ids := make([]uint, 0, len(submissions))
	for _, sub := range submissions {
		if _, ok := seen[sub.CaseID]; ok {
			continue
		}
		seen[sub.CaseID] = struct{}{}
		ids = append(ids, sub.CaseID)
	}

	return ids
}
