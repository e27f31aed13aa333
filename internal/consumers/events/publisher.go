package events

import (
	"context"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/lms-engagements/internal/engagements"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
)

const defaultPublishTimeout = 15 * time.Second

type publishFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

// Publisher puts dispatcher events on the events topic for the worker's
// consumer to pick up.
type Publisher struct {
	publish publishFunc
	timeout time.Duration
}

// NewPublisher wraps a Pub/Sub topic publisher.
func NewPublisher(topic *pubsub.Publisher) (*Publisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return &Publisher{
		publish: func(ctx context.Context, msg *pubsub.Message) (string, error) {
			return topic.Publish(ctx, msg).Get(ctx)
		},
		timeout: defaultPublishTimeout,
	}, nil
}

// Publish sends the event and returns the event id carried on the message.
func (p *Publisher) Publish(ctx context.Context, event engagements.Event) (string, error) {
	if !event.Name.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown event").WithDetails(map[string]any{"event": event.Name})
	}
	if event.UserID <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	msg := NewMessage(event)
	body, attrs, err := msg.Encode()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event message")
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.publish(publishCtx, &pubsub.Message{Data: body, Attributes: attrs}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish event")
	}
	return msg.EventID, nil
}
