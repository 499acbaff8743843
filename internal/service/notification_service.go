package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/observability"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

const (
	notificationBufferSize = 16
	notificationChannel    = "casecamp:notifications"
)

// ErrNotificationNotFound indicates the notification does not exist or
// belongs to someone else.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService turns fabric deliveries into per-student
// notifications and streams them to connected clients. It sits on the
// same submission subject as the score and analytics consumers but in
// its own queue group, so each change reaches it independently.
type NotificationService interface {
	trigger.SubmissionHandler
	trigger.WeekHandler

	List(ctx context.Context, studentID uint, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, studentID uint) (dto.NotificationResponse, error)
	Subscribe(studentID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo     repository.NotificationRepository
	students repository.StudentRepository
	redis    *redis.Client
	logger   zerolog.Logger
	tracer   trace.Tracer
	broker   *notificationBroker
	nodeID   string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs the notification consumer.
func NewNotificationService(repo repository.NotificationRepository, students repository.StudentRepository, redisClient *redis.Client, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:     repo,
		students: students,
		redis:    redisClient,
		logger:   logger.With().Str("component", "notification_service").Logger(),
		tracer:   otel.Tracer("github.com/casecamp/casecamp-api/internal/service/notification"),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

// Start attaches the cross-node redis fanout. Without redis the broker
// still serves clients connected to this node.
func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil {
		go s.consumeRedis(ctx)
	}
}

// HandleSubmissionChange creates a notification when a submission
// transitions into the scored state or its score is revised. Duplicate
// deliveries of an unchanged document produce no transition and are
// dropped here.
func (s *notificationService) HandleSubmissionChange(ctx context.Context, event trigger.SubmissionChangeEvent) error {
	if event.After == nil {
		return nil
	}
	if event.After.Status != models.SubmissionStatusScored {
		return nil
	}

	wasScored := event.Before != nil && event.Before.Status == models.SubmissionStatusScored
	scoreChanged := false
	if wasScored && event.Before.TeacherScore != nil && event.After.TeacherScore != nil {
		scoreChanged = *event.Before.TeacherScore != *event.After.TeacherScore
	}
	if wasScored && !scoreChanged {
		return nil
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.submission_scored", trace.WithAttributes(
		attribute.Int64("submission.id", int64(event.After.ID)),
		attribute.Int64("student.id", int64(event.After.StudentID)),
	))
	defer span.End()

	message := "Your case submission has been reviewed."
	if event.After.TeacherScore != nil {
		message = fmt.Sprintf("Your case submission has been reviewed and scored %.1f.", *event.After.TeacherScore)
	}

	return s.deliver(spanCtx, event.After.StudentID, models.NotificationTypeSubmissionScored, message)
}

// HandleWeekChange announces week activations to every student.
func (s *notificationService) HandleWeekChange(ctx context.Context, event trigger.WeekChangeEvent) error {
	if event.After == nil || !event.After.IsActive {
		return nil
	}
	if event.Before != nil && event.Before.IsActive {
		return nil
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.week_activated", trace.WithAttributes(
		attribute.Int64("week.id", int64(event.After.ID)),
	))
	defer span.End()

	students, err := s.students.ListIDs(spanCtx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	message := fmt.Sprintf("A new week is open: %s", event.After.Title)
	for _, studentID := range students {
		if err := s.deliver(spanCtx, studentID, models.NotificationTypeWeekActivated, message); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to deliver week notification")
		}
	}

	return nil
}

func (s *notificationService) deliver(ctx context.Context, studentID uint, notificationType, message string) error {
	model := models.Notification{
		StudentID: studentID,
		Type:      notificationType,
		Message:   message,
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		return err
	}

	response := dto.NewNotificationResponse(model)
	s.broker.broadcast(studentID, response)
	if err := s.fanout(ctx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to fan out notification")
	}

	observability.NotificationsSent().WithLabelValues(notificationType).Inc()

	return nil
}

func (s *notificationService) List(ctx context.Context, studentID uint, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, studentID uint) (dto.NotificationResponse, error) {
	notification, err := s.repo.MarkRead(ctx, id, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(studentID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(studentID, channel)

	cleanup := func() {
		s.broker.unsubscribe(studentID, channel)
	}

	return channel, cleanup
}

func (s *notificationService) fanout(ctx context.Context, notification dto.NotificationResponse) error {
	if s.redis == nil {
		return nil
	}

	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.redis.Publish(ctx, notificationChannel, payload).Err()
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, notificationChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleFanout([]byte(msg.Payload))
	}
}

func (s *notificationService) handleFanout(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification fanout payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Notification.StudentID, event.Notification)
}

func (b *notificationBroker) subscribe(studentID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[studentID]; !exists {
		b.subscribers[studentID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[studentID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(studentID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[studentID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, studentID)
		}
	}
}

func (b *notificationBroker) broadcast(studentID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[studentID]
	for ch := range subscribers {
		select {
		case ch <- notification:
		default:
		}
	}
}
