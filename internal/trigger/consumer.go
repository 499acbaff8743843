package trigger

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubmissionHandler reacts to one submission change delivery. Errors are
// logged by the consumer; the fabric does not redeliver on handler
// failure, so handlers must surface failures through their own metrics.
type SubmissionHandler interface {
	HandleSubmissionChange(ctx context.Context, event SubmissionChangeEvent) error
}

// WeekHandler reacts to week change deliveries.
type WeekHandler interface {
	HandleWeekChange(ctx context.Context, event WeekChangeEvent) error
}

// Consumer binds engine handlers to fabric subjects. Each handler gets
// its own queue group so scaling out the service shards deliveries
// instead of duplicating them per node; duplicates can still occur and
// handlers are required to absorb them.
type Consumer struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewConsumer builds a fabric consumer over the given connection.
func NewConsumer(conn *nats.Conn, logger zerolog.Logger) *Consumer {
	return &Consumer{
		conn:   conn,
		logger: logger.With().Str("component", "trigger_consumer").Logger(),
	}
}

// SubscribeSubmissions attaches a submission handler under the named
// queue group and drains the subscription when ctx is cancelled.
func (c *Consumer) SubscribeSubmissions(ctx context.Context, queue string, handler SubmissionHandler) error {
	sub, err := c.conn.QueueSubscribe(SubjectSubmissions, queue, func(msg *nats.Msg) {
		var event SubmissionChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Warn().Err(err).Str("queue", queue).Msg("invalid submission change payload")
			return
		}

		if err := handler.HandleSubmissionChange(ctx, event); err != nil {
			c.logger.Error().Err(err).
				Str("queue", queue).
				Str("event_id", event.EventID).
				Msg("submission change handler failed")
		}
	})
	if err != nil {
		return err
	}

	c.drainOnDone(ctx, sub, queue)
	return nil
}

// SubscribeWeeks attaches a week handler under the named queue group.
func (c *Consumer) SubscribeWeeks(ctx context.Context, queue string, handler WeekHandler) error {
	sub, err := c.conn.QueueSubscribe(SubjectWeeks, queue, func(msg *nats.Msg) {
		var event WeekChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Warn().Err(err).Str("queue", queue).Msg("invalid week change payload")
			return
		}

		if err := handler.HandleWeekChange(ctx, event); err != nil {
			c.logger.Error().Err(err).
				Str("queue", queue).
				Str("event_id", event.EventID).
				Msg("week change handler failed")
		}
	})
	if err != nil {
		return err
	}

	c.drainOnDone(ctx, sub, queue)
	return nil
}

func (c *Consumer) drainOnDone(ctx context.Context, sub *nats.Subscription, queue string) {
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			c.logger.Warn().Err(err).Str("queue", queue).Msg("failed to drain subscription")
		}
	}()
}
