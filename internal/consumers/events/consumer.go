package events

import (
	"context"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/lms-engagements/internal/engagements"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

const consumerName = "engagement-dispatch"

type dispatcher interface {
	OnEvent(ctx context.Context, event engagements.Event) (*engagements.DispatchResult, error)
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, messageID string) (bool, error)
	Delete(ctx context.Context, consumer, messageID string) error
}

// Consumer feeds domain events from Pub/Sub into the trigger dispatcher.
type Consumer struct {
	dispatcher   dispatcher
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds the event consumer. The subscription may be nil when
// only Process is used.
func NewConsumer(d dispatcher, subscription *pubsub.Subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		dispatcher:   d,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("events subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Process(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Process handles one message and reports whether it should be acked.
// Undecodable or invalid events are acked and dropped; dispatch failures
// clear the processed marker and ask for redelivery.
func (c *Consumer) Process(ctx context.Context, messageID string, data []byte) bool {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	msg, event, err := decodeMessage(data)
	if err != nil {
		c.logg.Error(logCtx, "dropping malformed event", err)
		return true
	}

	dedupID := strings.TrimSpace(msg.EventID)
	if dedupID == "" {
		dedupID = messageID
	}
	event.ID = dedupID
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id": dedupID,
		"event":    event.Name,
		"user_id":  event.UserID,
	})

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, dedupID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	result, err := c.dispatcher.OnEvent(logCtx, event)
	if err != nil {
		if !retryable(err) {
			c.logg.Error(logCtx, "event rejected by dispatcher", err)
			return true
		}
		c.logg.Error(logCtx, "event dispatch failed", err)
		if delErr := c.idempotency.Delete(ctx, consumerName, dedupID); delErr != nil {
			c.logg.Error(logCtx, "failed to clear idempotency marker", delErr)
		}
		return false
	}

	c.logg.Info(c.logg.WithField(logCtx, "matched", len(result.Items)), "event consumed")
	return true
}

// retryable reports whether any of the aggregated failures may succeed on
// redelivery. Untyped errors are assumed transient.
func retryable(err error) bool {
	for _, e := range multierr.Errors(err) {
		typed := pkgerrors.As(e)
		if typed == nil || pkgerrors.MetadataFor(typed.Code()).Retryable {
			return true
		}
	}
	return false
}
