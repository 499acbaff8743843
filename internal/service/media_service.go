package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadNotVideo indicates the payload is not a video file.
	ErrUploadNotVideo = errors.New("file is not a video")
)

// Transcoding status values written on upload and by the pipeline callback.
const (
	TranscodingStatusPending   = "pending"
	TranscodingStatusCompleted = "completed"
	TranscodingStatusError     = "error"
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// MediaService is the interface boundary to the external media and AI
// pipelines. It accepts student video uploads and the pipelines' status
// callbacks. The fields it writes are never read by the scoring engine;
// the change events it publishes carry unchanged scoring state and are
// absorbed by the change guard.
type MediaService interface {
	AttachVideo(ctx context.Context, submissionID uint, file *multipart.FileHeader) (dto.UploadResponse, error)
	UpdatePipelineStatus(ctx context.Context, submissionID uint, payload dto.SubmissionMediaUpdateRequest) (dto.SubmissionResponse, error)
}

type mediaService struct {
	submissions repository.SubmissionRepository
	storage     FileStorage
	publisher   trigger.Publisher
	maxSize     int64
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewMediaService constructs the media boundary service.
func NewMediaService(submissions repository.SubmissionRepository, storage FileStorage, publisher trigger.Publisher, maxSizeMB int, logger zerolog.Logger) MediaService {
	if maxSizeMB <= 0 {
		maxSizeMB = 200
	}

	return &mediaService{
		submissions: submissions,
		storage:     storage,
		publisher:   publisher,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		logger:      logger.With().Str("component", "media_service").Logger(),
		tracer:      otel.Tracer("github.com/casecamp/casecamp-api/internal/service/media"),
	}
}

func (s *mediaService) AttachVideo(ctx context.Context, submissionID uint, file *multipart.FileHeader) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "media.attach_video")
	span.SetAttributes(attribute.Int64("submission.id", int64(submissionID)))
	defer span.End()

	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}

	if file.Size > s.maxSize {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UploadResponse{}, ErrSubmissionNotFound
		}
		return dto.UploadResponse{}, err
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", mime.String()))
	if !strings.HasPrefix(mime.String(), "video/") {
		span.RecordError(ErrUploadNotVideo)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.UploadResponse{}, ErrUploadNotVideo
	}

	url, err := s.storage.Upload(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.UploadResponse{}, err
	}

	before := trigger.Snapshot(submission)
	submission.VideoURL = url
	submission.TranscodingStatus = TranscodingStatusPending
	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}

	// Media fields do not affect scoring; the event exists because the
	// fabric observes every submission write. The guard skips it.
	s.publish(ctx, before, trigger.Snapshot(submission))

	return dto.UploadResponse{
		URL:       url,
		SizeBytes: int64(buf.Len()),
		MimeType:  mime.String(),
		FileName:  file.Filename,
	}, nil
}

func (s *mediaService) UpdatePipelineStatus(ctx context.Context, submissionID uint, payload dto.SubmissionMediaUpdateRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "media.pipeline_status")
	span.SetAttributes(attribute.Int64("submission.id", int64(submissionID)))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	before := trigger.Snapshot(submission)

	if payload.TranscodingStatus != "" {
		submission.TranscodingStatus = payload.TranscodingStatus
	}
	if payload.AIStatus != "" {
		submission.AIStatus = payload.AIStatus
	}
	if len(payload.AutoFeedback) > 0 {
		submission.AutoFeedback = datatypes.JSON(payload.AutoFeedback)
	}

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	s.publish(ctx, before, trigger.Snapshot(submission))

	return dto.NewSubmissionResponse(submission), nil
}

func (s *mediaService) publish(ctx context.Context, before, after *trigger.SubmissionSnapshot) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishSubmissionChange(ctx, before, after); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish submission change event")
	}
}
