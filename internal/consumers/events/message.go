package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/lms-engagements/internal/engagements"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

// EventTypeAttribute carries the event name on published messages.
const EventTypeAttribute = "event_type"

// Message is the wire form of a domain event on the events topic.
type Message struct {
	EventID       string `json:"eventId"`
	Event         string `json:"event"`
	UserID        int64  `json:"userId"`
	RelatedPostID *int64 `json:"relatedPostId,omitempty"`
}

// NewMessage wraps a dispatcher event, keeping its id or minting a fresh one.
func NewMessage(event engagements.Event) Message {
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	return Message{
		EventID:       eventID,
		Event:         string(event.Name),
		UserID:        event.UserID,
		RelatedPostID: event.RelatedPostID,
	}
}

// Encode returns the message body and attributes for publishing.
func (m Message) Encode() ([]byte, map[string]string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return body, map[string]string{EventTypeAttribute: m.Event}, nil
}

func decodeMessage(data []byte) (Message, engagements.Event, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, engagements.Event{}, fmt.Errorf("decode event message: %w", err)
	}
	name, err := enums.ParseEventName(strings.TrimSpace(msg.Event))
	if err != nil {
		return Message{}, engagements.Event{}, err
	}
	if msg.UserID <= 0 {
		return Message{}, engagements.Event{}, fmt.Errorf("event message missing user id")
	}
	return msg, engagements.Event{Name: name, UserID: msg.UserID, RelatedPostID: msg.RelatedPostID}, nil
}
