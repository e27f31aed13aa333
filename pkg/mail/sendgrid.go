package mail

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/lms-engagements/pkg/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type apiFunc func(request rest.Request) (*rest.Response, error)

// SendgridSender delivers messages through the SendGrid v3 mail API.
type SendgridSender struct {
	key  string
	from *sgmail.Email
	api  apiFunc
}

// NewSendgridSender builds a sender from the sendgrid configuration.
func NewSendgridSender(cfg config.SendgridConfig) (*SendgridSender, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, fmt.Errorf("sendgrid from email is required")
	}
	return &SendgridSender{
		key:  cfg.APIKey,
		from: sgmail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		api:  sendgrid.API,
	}, nil
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := s.api(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", wrapHTML(msg)))
	return m
}

func wrapHTML(msg Message) string {
	if strings.TrimSpace(msg.Heading) == "" {
		return msg.HTMLBody
	}
	return "<h1>" + msg.Heading + "</h1>\n" + msg.HTMLBody
}
