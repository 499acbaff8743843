package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/observability"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

var (
	// ErrCaseNotFound indicates the submission references a case that
	// does not exist. A data-integrity condition: the invocation aborts
	// without retry and without partial writes.
	ErrCaseNotFound = errors.New("referenced case not found")
	// ErrWeekNotFound indicates the case references a missing week.
	ErrWeekNotFound = errors.New("referenced week not found")
	// ErrStudentNotFound indicates the owning student row is missing.
	ErrStudentNotFound = errors.New("referenced student not found")
)

// DefaultPropagationAttempts bounds conflict retries per invocation.
const DefaultPropagationAttempts = 5

// Propagator applies the signed point delta for one submission change
// across the four derived records in a single transaction: the
// submission's stored total, the student's running sum, and the global
// and weekly leaderboard rows. Safe under duplicate and out-of-order
// delivery: every attempt re-reads the submission under a row lock and
// recomputes, so a repeat delivery finds a zero delta and skips.
type Propagator struct {
	db          *gorm.DB
	publisher   trigger.Publisher
	maxAttempts int
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewPropagator constructs the delta propagator.
func NewPropagator(db *gorm.DB, publisher trigger.Publisher, maxAttempts int, logger zerolog.Logger) *Propagator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultPropagationAttempts
	}

	return &Propagator{
		db:          db,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "delta_propagator").Logger(),
		tracer:      otel.Tracer("github.com/casecamp/casecamp-api/internal/engine/propagator"),
	}
}

type propagationResult struct {
	skipped  bool
	delta    int
	computed int
	before   *trigger.SubmissionSnapshot
	after    *trigger.SubmissionSnapshot
}

// HandleSubmissionChange is the scoring-path consumer for the trigger
// fabric. Deletions are a no-op for this engine.
func (p *Propagator) HandleSubmissionChange(ctx context.Context, event trigger.SubmissionChangeEvent) error {
	if event.After == nil {
		observability.ScoringRuns().WithLabelValues("skipped").Inc()
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "engine.propagate")
	span.SetAttributes(
		attribute.Int64("submission.id", int64(event.After.ID)),
		attribute.Int64("student.id", int64(event.After.StudentID)),
	)
	defer span.End()

	var result propagationResult
	err := WithConflictRetry(ctx, p.maxAttempts, func() {
		observability.PropagationRetries().Inc()
	}, func(ctx context.Context) error {
		result = propagationResult{}
		return p.propagate(ctx, event.After.ID, &result)
	})
	if err != nil {
		observability.ScoringRuns().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "propagation_failed")
		p.logger.Error().Err(err).
			Uint("submission_id", event.After.ID).
			Uint("student_id", event.After.StudentID).
			Msg("delta propagation failed")
		return err
	}

	if result.skipped {
		observability.ScoringRuns().WithLabelValues("skipped").Inc()
		span.SetAttributes(attribute.Bool("propagation.skipped", true))
		return nil
	}

	observability.ScoringRuns().WithLabelValues("applied").Inc()
	span.SetAttributes(
		attribute.Int("propagation.delta", result.delta),
		attribute.Int("propagation.computed", result.computed),
	)
	p.logger.Info().
		Uint("submission_id", event.After.ID).
		Int("delta", result.delta).
		Int("computed", result.computed).
		Msg("points propagated")

	// The write-back above re-triggers this handler. The next delivery
	// recomputes a zero delta and is absorbed by the change guard.
	if p.publisher != nil {
		if err := p.publisher.PublishSubmissionChange(ctx, result.before, result.after); err != nil {
			p.logger.Warn().Err(err).Uint("submission_id", event.After.ID).Msg("failed to publish write-back event")
		}
	}

	return nil
}

// propagate executes one transactional attempt. All inputs are re-read
// fresh inside the transaction; the calculator's purity makes the
// recompute safe after a conflict retry.
func (p *Propagator) propagate(ctx context.Context, submissionID uint, result *propagationResult) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Submission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sub, submissionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.skipped = true
			return nil
		}
		if err != nil {
			return err
		}

		var caseRecord models.Case
		if err := tx.First(&caseRecord, sub.CaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCaseNotFound
			}
			return err
		}

		var week models.Week
		if err := tx.First(&week, caseRecord.WeekID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWeekNotFound
			}
			return err
		}

		computed := ComputeScore(sub, week)
		delta, proceed := EvaluateChange(computed, sub.TotalPointsAwarded)
		if !proceed {
			result.skipped = true
			return nil
		}

		result.before = trigger.Snapshot(sub)
		result.delta = delta
		result.computed = computed

		if err := tx.Model(&models.Submission{}).
			Where("id = ?", sub.ID).
			Update("total_points_awarded", computed).Error; err != nil {
			return err
		}
		sub.TotalPointsAwarded = computed

		studentUpdate := tx.Model(&models.Student{}).
			Where("id = ?", sub.StudentID).
			Update("total_points", gorm.Expr("total_points + ?", delta))
		if studentUpdate.Error != nil {
			return studentUpdate.Error
		}
		if studentUpdate.RowsAffected == 0 {
			return ErrStudentNotFound
		}

		globalEntry := models.GlobalLeaderboardEntry{
			StudentID:   sub.StudentID,
			TotalPoints: delta,
			Rank:        models.RankUnset,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_points": gorm.Expr("global_leaderboard_entries.total_points + ?", delta),
			}),
		}).Create(&globalEntry).Error; err != nil {
			return err
		}

		weeklyEntry := models.WeeklyLeaderboardEntry{
			WeekID:      caseRecord.WeekID,
			StudentID:   sub.StudentID,
			TotalPoints: delta,
			Rank:        models.RankUnset,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "week_id"}, {Name: "student_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_points": gorm.Expr("weekly_leaderboard_entries.total_points + ?", delta),
			}),
		}).Create(&weeklyEntry).Error; err != nil {
			return err
		}

		result.after = trigger.Snapshot(sub)
		return nil
	})
}
