package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/common/events"
	"github.com/runcrew/service-running/internal/common/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEventWithKey(ctx context.Context, topic, key string, event kafka.CloudEvent) error
}

// publishEvent wraps data in a CloudEvent and publishes it. Failures are logged, not returned.
func publishEvent(ctx context.Context, producer EventPublisher, logger *zap.Logger, topic, eventType, key string, data interface{}) {
	if producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(events.Source, eventType, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := producer.PublishEventWithKey(ctx, topic, key, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
