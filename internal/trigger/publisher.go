package trigger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects the fabric publishes document change events on.
const (
	SubjectSubmissions = "casecamp.submissions.changed"
	SubjectWeeks       = "casecamp.weeks.changed"
)

// Publisher delivers document change events into the trigger fabric.
type Publisher interface {
	PublishSubmissionChange(ctx context.Context, before, after *SubmissionSnapshot) error
	PublishWeekChange(ctx context.Context, event WeekChangeEvent) error
}

type natsPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewPublisher wraps a NATS connection as an event publisher.
func NewPublisher(conn *nats.Conn, logger zerolog.Logger) Publisher {
	return &natsPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "trigger_publisher").Logger(),
	}
}

func (p *natsPublisher) PublishSubmissionChange(ctx context.Context, before, after *SubmissionSnapshot) error {
	event := SubmissionChangeEvent{
		EventID: uuid.NewString(),
		Before:  before,
		After:   after,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(SubjectSubmissions, payload); err != nil {
		p.logger.Error().Err(err).Str("event_id", event.EventID).Msg("failed to publish submission change")
		return err
	}

	return nil
}

func (p *natsPublisher) PublishWeekChange(ctx context.Context, event WeekChangeEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.conn.Publish(SubjectWeeks, payload)
}
