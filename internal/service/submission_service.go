package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

var (
	// ErrSubmissionNotFound indicates the submission was not located.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrCaseNotFound indicates the referenced case does not exist.
	ErrCaseNotFound = errors.New("case not found")
	// ErrStudentNotFound indicates the referenced student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrDuplicateSubmission indicates the student already submitted
	// work for this case.
	ErrDuplicateSubmission = errors.New("submission already exists for this case")
)

// SubmissionService manages the submission lifecycle: creation by
// students and scoring by teachers. Every write publishes a before/after
// change event into the trigger fabric; the scoring engine reacts to
// those events, never to direct calls from this service.
type SubmissionService interface {
	Create(ctx context.Context, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	Score(ctx context.Context, id uint, payload dto.SubmissionScoreRequest) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	cases       repository.CaseRepository
	students    repository.StudentRepository
	publisher   trigger.Publisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(submissions repository.SubmissionRepository, cases repository.CaseRepository, students repository.StudentRepository, publisher trigger.Publisher, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		cases:       cases,
		students:    students,
		publisher:   publisher,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/casecamp/casecamp-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Create(ctx context.Context, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.create")
	span.SetAttributes(
		attribute.Int64("case.id", int64(payload.CaseID)),
		attribute.Int64("student.id", int64(payload.StudentID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.cases.GetByID(ctx, payload.CaseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrCaseNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.students.GetByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrStudentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.submissions.GetByCaseAndStudent(ctx, payload.CaseID, payload.StudentID); err == nil {
		return dto.SubmissionResponse{}, ErrDuplicateSubmission
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		CaseID:      payload.CaseID,
		StudentID:   payload.StudentID,
		Status:      models.SubmissionStatusSubmitted,
		SubmittedAt: s.now().UTC(),
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_create_failed")
		return dto.SubmissionResponse{}, err
	}

	s.publishChange(ctx, nil, &submission)

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		CaseID:    filter.CaseID,
		StudentID: filter.StudentID,
		Status:    filter.Status,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Score(ctx context.Context, id uint, payload dto.SubmissionScoreRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.score")
	span.SetAttributes(attribute.Int64("submission.id", int64(id)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))

	alreadyApplied := submission.IsScored() &&
		submission.TeacherScore != nil &&
		math.Abs(*submission.TeacherScore-payload.Score) < 1e-6 &&
		strings.TrimSpace(submission.Feedback) == feedback
	if alreadyApplied {
		span.SetAttributes(attribute.Bool("score.idempotent", true))
		return dto.NewSubmissionResponse(submission), nil
	}

	before := trigger.Snapshot(submission)

	score := payload.Score
	submission.TeacherScore = &score
	submission.Feedback = feedback
	submission.Status = models.SubmissionStatusScored

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.SubmissionResponse{}, err
	}

	s.publishChangeSnapshot(ctx, before, trigger.Snapshot(submission))
	span.SetAttributes(attribute.Float64("score.value", payload.Score))

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) publishChange(ctx context.Context, before, after *models.Submission) {
	var beforeSnap, afterSnap *trigger.SubmissionSnapshot
	if before != nil {
		beforeSnap = trigger.Snapshot(*before)
	}
	if after != nil {
		afterSnap = trigger.Snapshot(*after)
	}

	s.publishChangeSnapshot(ctx, beforeSnap, afterSnap)
}

func (s *submissionService) publishChangeSnapshot(ctx context.Context, before, after *trigger.SubmissionSnapshot) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishSubmissionChange(ctx, before, after); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish submission change event")
	}
}
