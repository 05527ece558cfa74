package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/common/events"
	"github.com/runcrew/service-running/internal/common/kafka"
	userDomain "github.com/runcrew/service-running/internal/domain/user"
)

// ParticipationRecorder credits a completed running to a user.
type ParticipationRecorder interface {
	RecordParticipation(ctx context.Context, userID uuid.UUID, p userDomain.Participation) error
}

// RunningEventConsumer listens to running events and updates runner stats.
type RunningEventConsumer struct {
	consumer *kafka.Consumer
	recorder ParticipationRecorder
	logger   *zap.Logger
}

// NewRunningEventConsumer creates a new RunningEventConsumer.
func NewRunningEventConsumer(
	brokers []string,
	groupID string,
	recorder ParticipationRecorder,
	logger *zap.Logger,
) *RunningEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicRunningEvents, logger)
	return &RunningEventConsumer{
		consumer: consumer,
		recorder: recorder,
		logger:   logger,
	}
}

// Start begins consuming running events. This blocks until the context is cancelled.
func (c *RunningEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *RunningEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *RunningEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from running topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.RunningCompleted:
		return c.handleRunningCompleted(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled running event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// Recording is idempotent per running, so a redelivered event after a partial
// failure only credits the members that were missed.
func (c *RunningEventConsumer) handleRunningCompleted(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.RunningCompletedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse RunningCompletedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing running completed event",
		zap.String("running_id", evt.RunningID.String()),
		zap.Int("roster_size", len(evt.Roster)),
	)

	participation := userDomain.Participation{
		RunningID: evt.RunningID,
		Date:      evt.ScheduledAt,
		CourseKm:  evt.CourseKm,
	}
	for _, userID := range evt.Roster {
		err := c.recorder.RecordParticipation(ctx, userID, participation)
		if err == nil {
			continue
		}
		if domain.IsNotFound(err) {
			c.logger.Warn("skipping participation for unknown user",
				zap.String("running_id", evt.RunningID.String()),
				zap.String("user_id", userID.String()),
			)
			continue
		}
		c.logger.Error("failed to record participation",
			zap.String("running_id", evt.RunningID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
