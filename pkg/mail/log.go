package mail

import (
	"context"

	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

// LogSender writes messages to the structured log instead of delivering them.
// Used when no SendGrid key is configured.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"to":      msg.ToEmail,
		"subject": msg.Subject,
	})
	s.logg.Info(ctx, "email delivery skipped, sendgrid disabled")
	return nil
}

// NewSender picks the SendGrid sender when configured and the log sender otherwise.
func NewSender(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if !cfg.Enabled() {
		return NewLogSender(logg), nil
	}
	return NewSendgridSender(cfg)
}
