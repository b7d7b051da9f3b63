package mail

import (
	"context"
	"fmt"
	"net/http"

	"tutor-ledger/internal/core/domain"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"
)

// SendGridMailer implements ports.Mailer with the SendGrid v3 API.
type SendGridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGridMailer creates a mailer sending as fromName <fromEmail>.
// Subjects are prefixed with "[fromName] ".
func NewSendGridMailer(key, fromName, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		key:        key,
		host:       defaultHost,
		from:       sgmail.NewEmail(fromName, fromEmail),
		subjPrefix: "[" + fromName + "] ",
	}
}

// WithHost points the mailer at another API host.
func (m *SendGridMailer) WithHost(host string) *SendGridMailer {
	m.host = host
	return m
}

func (m *SendGridMailer) prepare(to domain.Contact, subject, text string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + subject
	p.AddTos(sgmail.NewEmail(to.Name, to.Email))
	p.SetCustomArg("actor_id", to.ActorID.String())

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", text))
	return msg
}

// Send delivers a plain-text message. Any non-2xx answer is an error.
func (m *SendGridMailer) Send(ctx context.Context, to domain.Contact, subject, text string) error {
	if to.Email == "" {
		return fmt.Errorf("contact %s has no email", to.ActorID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, sendEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(to, subject, text))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned HTTP %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
