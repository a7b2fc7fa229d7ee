package notifier

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// StatusError is returned when the email API answers with a 4xx/5xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("email api returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// SendGridMailer delivers messages through the SendGrid v3 mail/send API.
type SendGridMailer struct {
	client *sendgrid.Client
}

func NewSendGridMailer(apiKey string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey)}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) (int, error) {
	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail("", to))
	}

	v3 := mail.NewV3Mail()
	v3.SetFrom(mail.NewEmail("", msg.From))
	v3.Subject = msg.Subject
	v3.AddPersonalizations(p)
	v3.AddContent(mail.NewContent("text/html", msg.HTML))

	resp, err := m.client.SendWithContext(ctx, v3)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp.StatusCode, nil
}
