package mailer

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends transactional mail. Handlers depend on this interface so
// tests can swap in a recorder.
type Mailer interface {
	Send(to, subject, plain, html string) error
}

// SendGrid sends through the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGrid(apiKey, fromName, fromAddr string) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddr),
	}
}

func (s *SendGrid) Send(to, subject, plain, html string) error {
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), plain, html)
	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mail rejected with status %d", resp.StatusCode)
	}
	return nil
}

// LogOnly writes mail to the process log instead of sending it. Used when
// no API key is configured, so local setups work without SendGrid.
type LogOnly struct{}

func (LogOnly) Send(to, subject, plain, _ string) error {
	log.Printf("mail (not sent) to=%s subject=%q body=%q", to, subject, plain)
	return nil
}
