package mail

import (
	"context"
	"errors"
	"strings"
)

// Message is a rendered email ready for delivery.
type Message struct {
	ToEmail  string
	ToName   string
	Subject  string
	Heading  string
	HTMLBody string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func (m Message) validate() error {
	if strings.TrimSpace(m.ToEmail) == "" {
		return errors.New("recipient email is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}
