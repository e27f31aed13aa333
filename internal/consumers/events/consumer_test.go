package events

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"

	"github.com/angelmondragon/lms-engagements/internal/engagements"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

type fakeDispatcher struct {
	events []engagements.Event
	err    error
}

func (f *fakeDispatcher) OnEvent(_ context.Context, event engagements.Event) (*engagements.DispatchResult, error) {
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, f.err
	}
	return &engagements.DispatchResult{Event: event}, nil
}

type memGuard struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func newMemGuard() *memGuard {
	return &memGuard{seen: map[string]bool{}}
}

func (g *memGuard) CheckAndMarkProcessed(_ context.Context, consumer, messageID string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	key := consumer + ":" + messageID
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memGuard) Delete(_ context.Context, consumer, messageID string) error {
	key := consumer + ":" + messageID
	delete(g.seen, key)
	g.deleted = append(g.deleted, messageID)
	return nil
}

func mustConsumer(t *testing.T, d dispatcher, guard idempotencyGuard) *Consumer {
	t.Helper()
	c, err := NewConsumer(d, nil, guard, logger.Nop())
	if err != nil {
		t.Fatalf("NewConsumer() error: %v", err)
	}
	return c
}

func encoded(t *testing.T, msg Message) []byte {
	t.Helper()
	body, attrs, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if attrs[EventTypeAttribute] != msg.Event {
		t.Fatalf("event type attribute mismatch: %v", attrs)
	}
	return body
}

func TestProcessDispatchesOnce(t *testing.T) {
	d := &fakeDispatcher{}
	c := mustConsumer(t, d, newMemGuard())
	postID := int64(12)
	msg := NewMessage(engagements.Event{Name: enums.EventLessonCompleted, UserID: 4, RelatedPostID: &postID})
	body := encoded(t, msg)

	if !c.Process(context.Background(), "m-1", body) {
		t.Fatalf("expected ack")
	}
	if !c.Process(context.Background(), "m-2", body) {
		t.Fatalf("expected ack for redelivered event")
	}
	if len(d.events) != 1 {
		t.Fatalf("expected a single dispatch, got %d", len(d.events))
	}
	got := d.events[0]
	if got.Name != enums.EventLessonCompleted || got.UserID != 4 || got.RelatedPostID == nil || *got.RelatedPostID != 12 {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.ID != msg.EventID {
		t.Fatalf("expected event id %q, got %q", msg.EventID, got.ID)
	}
}

func TestNewMessageKeepsEventID(t *testing.T) {
	msg := NewMessage(engagements.Event{ID: "evt-42", Name: enums.EventUserRegistered, UserID: 2})
	if msg.EventID != "evt-42" {
		t.Fatalf("expected caller event id, got %q", msg.EventID)
	}
	if NewMessage(engagements.Event{Name: enums.EventUserRegistered, UserID: 2}).EventID == "" {
		t.Fatalf("expected generated event id")
	}
}

func TestProcessFallsBackToMessageID(t *testing.T) {
	d := &fakeDispatcher{}
	c := mustConsumer(t, d, newMemGuard())
	body := []byte(`{"event":"user.registered","userId":7}`)

	c.Process(context.Background(), "m-1", body)
	c.Process(context.Background(), "m-1", body)
	c.Process(context.Background(), "m-2", body)
	if len(d.events) != 2 {
		t.Fatalf("expected dedup by message id, got %d dispatches", len(d.events))
	}
	if d.events[0].ID != "m-1" || d.events[1].ID != "m-2" {
		t.Fatalf("expected message ids on events, got %q and %q", d.events[0].ID, d.events[1].ID)
	}
}

func TestProcessAcksMalformed(t *testing.T) {
	d := &fakeDispatcher{}
	c := mustConsumer(t, d, newMemGuard())
	for _, body := range []string{`not json`, `{"event":"course.deleted","userId":1}`, `{"event":"course.completed"}`} {
		if !c.Process(context.Background(), "m", []byte(body)) {
			t.Fatalf("malformed message %s should be acked", body)
		}
	}
	if len(d.events) != 0 {
		t.Fatalf("malformed messages must not dispatch")
	}
}

func TestProcessNacksRetryableFailure(t *testing.T) {
	guard := newMemGuard()
	d := &fakeDispatcher{err: multierr.Combine(
		fmt.Errorf("engagement 1: %w", pkgerrors.New(pkgerrors.CodeNotFound, "template gone")),
		fmt.Errorf("engagement 2: %w", pkgerrors.Wrap(pkgerrors.CodeDelivery, errors.New("smtp"), "send email")),
	)}
	c := mustConsumer(t, d, guard)
	body := encoded(t, Message{EventID: "evt-1", Event: "course.completed", UserID: 3})

	if c.Process(context.Background(), "m-1", body) {
		t.Fatalf("expected nack")
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "evt-1" {
		t.Fatalf("expected marker cleared, got %v", guard.deleted)
	}

	d.err = nil
	if !c.Process(context.Background(), "m-1", body) {
		t.Fatalf("expected redelivery to succeed")
	}
	if len(d.events) != 2 {
		t.Fatalf("expected redelivery to dispatch again, got %d", len(d.events))
	}
}

func TestProcessAcksPermanentFailure(t *testing.T) {
	guard := newMemGuard()
	d := &fakeDispatcher{err: pkgerrors.New(pkgerrors.CodeNotFound, "purchased post not found")}
	c := mustConsumer(t, d, guard)
	body := encoded(t, Message{EventID: "evt-9", Event: "product.purchased", UserID: 3})

	if !c.Process(context.Background(), "m-1", body) {
		t.Fatalf("expected ack for permanent failure")
	}
	if len(guard.deleted) != 0 {
		t.Fatalf("marker should be kept for permanent failures")
	}
}

func TestProcessNacksWhenIdempotencyUnavailable(t *testing.T) {
	guard := newMemGuard()
	guard.err = errors.New("redis down")
	d := &fakeDispatcher{}
	c := mustConsumer(t, d, guard)
	if c.Process(context.Background(), "m-1", encoded(t, Message{Event: "quiz.passed", UserID: 1})) {
		t.Fatalf("expected nack")
	}
	if len(d.events) != 0 {
		t.Fatalf("must not dispatch without idempotency")
	}
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	if _, err := NewConsumer(nil, nil, newMemGuard(), logger.Nop()); err == nil {
		t.Fatalf("expected dispatcher error")
	}
	if _, err := NewConsumer(&fakeDispatcher{}, nil, nil, logger.Nop()); err == nil {
		t.Fatalf("expected idempotency error")
	}
	if _, err := NewConsumer(&fakeDispatcher{}, nil, newMemGuard(), nil); err == nil {
		t.Fatalf("expected logger error")
	}
}
